package access

import (
	"errors"
	"testing"

	"github.com/openmaint/openmaint/internal/catalog"
)

// TestPurpose: Validates that administrators resolve to allow on every
// catalog entry, even when a stored override explicitly denies it.
// Scope: Unit Test
// Security: Admin lockout prevention (stale data can never strip admin access)
// Expected: Resolve(ADMIN, ...) == true for all (module, action) pairs.
func TestResolve_AdminBypass(t *testing.T) {
	denying := Matrix{}
	for _, mod := range catalog.Modules() {
		for _, action := range mod.Actions {
			denying.Set(mod.Key, action, false)
		}
	}

	for _, mod := range catalog.Modules() {
		for _, action := range mod.Actions {
			allowed, err := Resolve(RoleAdmin, denying, mod.Key, action)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !allowed {
				t.Errorf("admin denied %s/%s despite bypass", mod.Key, action)
			}
		}
	}
}

// TestPurpose: Validates that users with no override resolve exactly to
// their role defaults for every catalog entry.
// Scope: Unit Test
// Expected: Resolve(role, {}, m, a) == DefaultsFor(role)[m][a].
func TestResolve_DefaultFallback(t *testing.T) {
	for _, role := range []Role{RoleTechnicien, RoleVisualiseur, RoleDemandeur, RoleChefEquipe} {
		defaults, err := DefaultsFor(role)
		if err != nil {
			t.Fatalf("DefaultsFor(%s): %v", role, err)
		}
		for _, mod := range catalog.Modules() {
			for _, action := range mod.Actions {
				allowed, err := Resolve(role, nil, mod.Key, action)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				want, _ := defaults.Lookup(mod.Key, action)
				if allowed != want {
					t.Errorf("%s %s/%s = %v, want default %v", role, mod.Key, action, allowed, want)
				}
			}
		}
	}
}

// TestPurpose: Validates that an explicit override entry wins over the role
// default, in both directions.
// Scope: Unit Test
func TestResolve_OverridePrecedence(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		override Matrix
		key      catalog.Key
		action   catalog.Action
		expected bool
	}{
		{
			name:     "grant above default",
			role:     RoleVisualiseur,
			override: Matrix{catalog.WorkOrders: {catalog.ActionCreate: true}},
			key:      catalog.WorkOrders,
			action:   catalog.ActionCreate,
			expected: true,
		},
		{
			name:     "revoke below default",
			role:     RoleTechnicien,
			override: Matrix{catalog.Equipment: {catalog.ActionEdit: false}},
			key:      catalog.Equipment,
			action:   catalog.ActionEdit,
			expected: false,
		},
		{
			name:     "untouched entries keep defaults",
			role:     RoleTechnicien,
			override: Matrix{catalog.Equipment: {catalog.ActionEdit: false}},
			key:      catalog.Equipment,
			action:   catalog.ActionView,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, err := Resolve(tt.role, tt.override, tt.key, tt.action)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if allowed != tt.expected {
				t.Errorf("Resolve = %v, want %v", allowed, tt.expected)
			}
		})
	}
}

// TestPurpose: Validates the dependency invariant after resolution: edit or
// delete can only resolve true when view resolves true, even against
// inconsistent stored records written by older editors.
// Scope: Unit Test
// Security: Invariant normalization on read
func TestResolve_DependencyInvariantHolds(t *testing.T) {
	// Inconsistent record: edit granted while view revoked.
	override := Matrix{
		catalog.Inventory: {
			catalog.ActionView: false,
			catalog.ActionEdit: true,
		},
		catalog.WorkOrders: {
			catalog.ActionDelete: true,
			catalog.ActionView:   false,
		},
	}

	for _, role := range []Role{RoleTechnicien, RoleVisualiseur, RoleDemandeur, RoleChefEquipe} {
		for _, mod := range catalog.Modules() {
			for _, action := range []catalog.Action{catalog.ActionEdit, catalog.ActionDelete} {
				if !catalog.Supports(mod.Key, action) {
					continue
				}
				allowed, err := Resolve(role, override, mod.Key, action)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				view, _ := Resolve(role, override, mod.Key, catalog.ActionView)
				if allowed && !view {
					t.Errorf("%s: %s resolves true on %s with view false", role, action, mod.Key)
				}
			}
		}
	}
}

// TestPurpose: Validates that resolution is a pure function: identical
// inputs yield identical outputs across repeated calls.
// Scope: Unit Test
func TestResolve_Idempotent(t *testing.T) {
	override := Matrix{catalog.Meters: {catalog.ActionEdit: true}}
	first, err1 := Resolve(RoleVisualiseur, override, catalog.Meters, catalog.ActionEdit)
	second, err2 := Resolve(RoleVisualiseur, override, catalog.Meters, catalog.ActionEdit)
	if first != second || (err1 == nil) != (err2 == nil) {
		t.Errorf("resolution not idempotent: (%v,%v) then (%v,%v)", first, err1, second, err2)
	}
}

// TestPurpose: Validates fail-closed handling of queries outside the module
// catalog: the result is false and the error is diagnosable, never a panic.
// Scope: Unit Test (spec scenario: unregistered module key)
func TestResolve_UnknownModuleFailsClosed(t *testing.T) {
	allowed, err := Resolve(RoleTechnicien, nil, "nonexistent", catalog.ActionView)
	if allowed {
		t.Error("unknown module resolved to allow")
	}
	if !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("error = %v, want ErrInvalidQuery", err)
	}

	// Supported module, unsupported action for it.
	allowed, err = Resolve(RoleTechnicien, nil, catalog.Dashboard, catalog.ActionDelete)
	if allowed {
		t.Error("unsupported action resolved to allow")
	}
	if !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("error = %v, want ErrInvalidQuery", err)
	}
}

// TestPurpose: Validates that unknown roles resolve against the read-only
// template and flag the occurrence, rather than crashing or allowing.
// Scope: Unit Test
// Security: Upstream data corruption containment
func TestResolve_UnknownRoleFallsBackToReadOnly(t *testing.T) {
	allowed, err := Resolve("INTERN", nil, catalog.WorkOrders, catalog.ActionView)
	if !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("error = %v, want ErrUnknownRole", err)
	}
	if !allowed {
		t.Error("read-only fallback should allow work order view")
	}

	allowed, err = Resolve("INTERN", nil, catalog.WorkOrders, catalog.ActionDelete)
	if !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("error = %v, want ErrUnknownRole", err)
	}
	if allowed {
		t.Error("read-only fallback must not allow delete")
	}

	// Sensitive modules stay hidden on the fallback path.
	allowed, _ = Resolve("INTERN", nil, catalog.Settings, catalog.ActionView)
	if allowed {
		t.Error("read-only fallback must not expose settings")
	}
}

// Scenario: TECHNICIEN with no override keeps operational defaults.
func TestResolve_TechnicienDefaults(t *testing.T) {
	gate, err := NewGate(RoleTechnicien, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gate.CanDelete(catalog.WorkOrders) {
		t.Error("technician can delete work orders by default")
	}
	if !gate.CanEdit(catalog.WorkOrders) {
		t.Error("technician cannot edit work orders by default")
	}
	if !gate.CanCreate(catalog.WorkOrders) {
		t.Error("technician cannot create work orders by default")
	}
	if gate.CanEdit(catalog.Settings) {
		t.Error("technician can edit settings by default")
	}
	if gate.IsAdmin() {
		t.Error("technician gate reports admin")
	}
}

// Scenario: ADMIN with a hypothetically corrupt override denying settings
// view still sees settings.
func TestResolve_AdminIgnoresCorruptOverride(t *testing.T) {
	gate, err := NewGate(RoleAdmin, Matrix{catalog.Settings: {catalog.ActionView: false}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gate.CanView(catalog.Settings) {
		t.Error("admin lost settings view to a stored override")
	}
	if !gate.IsAdmin() {
		t.Error("admin gate does not report admin")
	}
}

func TestGate_FailsClosedOnUnknownModule(t *testing.T) {
	gate, err := NewGate(RoleTechnicien, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gate.CanView("nonexistent") {
		t.Error("gate allowed an unregistered module")
	}
}

func TestEffectiveMatrix_CoversWholeCatalog(t *testing.T) {
	effective, err := EffectiveMatrix(RoleVisualiseur, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, mod := range catalog.Modules() {
		for _, action := range mod.Actions {
			if _, ok := effective.Lookup(mod.Key, action); !ok {
				t.Errorf("effective matrix missing %s/%s", mod.Key, action)
			}
		}
	}
}
