package access

import (
	"errors"
	"testing"

	"github.com/openmaint/openmaint/internal/catalog"
)

func TestDefaultsFor_TotalOverCatalog(t *testing.T) {
	for _, role := range Roles() {
		defaults, err := DefaultsFor(role)
		if err != nil {
			t.Fatalf("DefaultsFor(%s): %v", role, err)
		}
		for _, mod := range catalog.Modules() {
			for _, action := range mod.Actions {
				if _, ok := defaults.Lookup(mod.Key, action); !ok {
					t.Errorf("%s: defaults missing %s/%s", role, mod.Key, action)
				}
			}
		}
	}
}

func TestDefaultsFor_UnknownRole(t *testing.T) {
	_, err := DefaultsFor("SUPERVISOR")
	if !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("error = %v, want ErrUnknownRole", err)
	}
}

// Templates must be internally consistent: no default ever grants edit or
// delete without view.
func TestDefaultsFor_TemplatesRespectDependencyInvariant(t *testing.T) {
	for _, role := range Roles() {
		defaults, _ := DefaultsFor(role)
		for key, set := range defaults {
			view := set[catalog.ActionView]
			if (set[catalog.ActionEdit] || set[catalog.ActionDelete]) && !view {
				t.Errorf("%s: %s grants edit/delete without view", role, key)
			}
		}
	}
}

func TestDefaultsFor_CanonicalShapes(t *testing.T) {
	tests := []struct {
		role     Role
		key      catalog.Key
		action   catalog.Action
		expected bool
	}{
		// Full access: everything.
		{RoleAdmin, catalog.Settings, catalog.ActionEdit, true},
		{RoleAdmin, catalog.WorkOrders, catalog.ActionDelete, true},
		// Operational: work orders end to end, no delete, view-only
		// administrative modules.
		{RoleTechnicien, catalog.WorkOrders, catalog.ActionEdit, true},
		{RoleTechnicien, catalog.WorkOrders, catalog.ActionDelete, false},
		{RoleTechnicien, catalog.Settings, catalog.ActionView, true},
		{RoleTechnicien, catalog.Settings, catalog.ActionEdit, false},
		{RoleTechnicien, catalog.People, catalog.ActionEdit, false},
		// Team lead: work order delete, people management.
		{RoleChefEquipe, catalog.WorkOrders, catalog.ActionDelete, true},
		{RoleChefEquipe, catalog.Equipment, catalog.ActionDelete, false},
		{RoleChefEquipe, catalog.People, catalog.ActionEdit, true},
		// Read-only: view everywhere except sensitive modules.
		{RoleVisualiseur, catalog.WorkOrders, catalog.ActionView, true},
		{RoleVisualiseur, catalog.WorkOrders, catalog.ActionCreate, false},
		{RoleVisualiseur, catalog.People, catalog.ActionView, false},
		{RoleVisualiseur, catalog.Settings, catalog.ActionView, false},
		// Requester: dashboard plus work requests.
		{RoleDemandeur, catalog.Requests, catalog.ActionCreate, true},
		{RoleDemandeur, catalog.Requests, catalog.ActionEdit, true},
		{RoleDemandeur, catalog.Dashboard, catalog.ActionView, true},
		{RoleDemandeur, catalog.Equipment, catalog.ActionView, false},
	}

	for _, tt := range tests {
		defaults, err := DefaultsFor(tt.role)
		if err != nil {
			t.Fatalf("DefaultsFor(%s): %v", tt.role, err)
		}
		got, _ := defaults.Lookup(tt.key, tt.action)
		if got != tt.expected {
			t.Errorf("%s %s/%s = %v, want %v", tt.role, tt.key, tt.action, got, tt.expected)
		}
	}
}

func TestMatrix_NormalizeDropsUnknownAndInconsistent(t *testing.T) {
	raw := Matrix{
		"futureModule": {catalog.ActionView: true},
		catalog.Inventory: {
			catalog.ActionView: false,
			catalog.ActionEdit: true,
		},
		catalog.Dashboard: {
			catalog.ActionView: true,
			"futureAction":     true,
		},
	}

	normalized := raw.Normalize()

	if _, ok := normalized["futureModule"]; ok {
		t.Error("unknown module survived normalization")
	}
	if _, ok := normalized[catalog.Dashboard]["futureAction"]; ok {
		t.Error("unknown action survived normalization")
	}
	if normalized[catalog.Inventory][catalog.ActionEdit] {
		t.Error("edit:true with view:false survived normalization")
	}
	if !normalized[catalog.Dashboard][catalog.ActionView] {
		t.Error("valid entry dropped by normalization")
	}
}
