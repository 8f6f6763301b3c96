package access

import (
	"errors"
	"testing"

	"github.com/openmaint/openmaint/internal/catalog"
)

// TestPurpose: Validates the minimal-diff commit property: a session seeded
// from role defaults and never modified diffs to an empty override.
// Scope: Unit Test
func TestEditor_UntouchedSessionDiffsEmpty(t *testing.T) {
	for _, role := range []Role{RoleTechnicien, RoleVisualiseur, RoleDemandeur, RoleChefEquipe} {
		working, err := NewWorkingMatrix("user-1", role, nil, 0)
		if err != nil {
			t.Fatalf("NewWorkingMatrix(%s): %v", role, err)
		}
		if diff := working.Diff(); len(diff) != 0 {
			t.Errorf("%s: untouched session diff = %v, want empty", role, diff)
		}
	}
}

// TestPurpose: Validates the forward invariant inside the editor: granting
// edit pulls view along, and the stored override carries both.
// Scope: Unit Test (spec scenario: VISUALISEUR granted inventory edit)
func TestEditor_GrantEditForcesView(t *testing.T) {
	working, err := NewWorkingMatrix("user-1", RoleVisualiseur, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := working.SetAction(catalog.Inventory, catalog.ActionEdit, true); err != nil {
		t.Fatalf("SetAction: %v", err)
	}

	effective := working.Effective()
	if v, _ := effective.Lookup(catalog.Inventory, catalog.ActionView); !v {
		t.Error("granting edit did not force view on")
	}

	diff := working.Diff()
	set, ok := diff[catalog.Inventory]
	if !ok {
		t.Fatal("diff missing inventory entry")
	}
	if !set[catalog.ActionEdit] {
		t.Error("diff missing edit grant")
	}
	if !set[catalog.ActionView] {
		t.Error("stored override must carry view:true alongside edit:true")
	}
}

// TestPurpose: Validates that revoking view cascades to edit and delete in
// the same module.
// Scope: Unit Test
func TestEditor_RevokeViewCascades(t *testing.T) {
	working, err := NewWorkingMatrix("user-1", RoleChefEquipe, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := working.SetAction(catalog.WorkOrders, catalog.ActionView, false); err != nil {
		t.Fatalf("SetAction: %v", err)
	}

	effective := working.Effective()
	for _, action := range []catalog.Action{catalog.ActionView, catalog.ActionEdit, catalog.ActionDelete} {
		if v, _ := effective.Lookup(catalog.WorkOrders, action); v {
			t.Errorf("%s still true after view revoked", action)
		}
	}
}

// TestPurpose: Validates that edits outside the catalog are rejected before
// reaching the store.
// Scope: Unit Test
func TestEditor_RejectsUnknownModuleAndAction(t *testing.T) {
	working, err := NewWorkingMatrix("user-1", RoleTechnicien, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := working.SetAction("nonexistent", catalog.ActionView, true); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("unknown module: error = %v, want ErrInvalidQuery", err)
	}
	if err := working.SetAction(catalog.Dashboard, catalog.ActionExport, true); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("unsupported action: error = %v, want ErrInvalidQuery", err)
	}
	if len(working.Diff()) != 0 {
		t.Error("rejected edits leaked into the diff")
	}
}

// TestPurpose: Validates ResetToRoleDefault discards prior overrides for
// the session.
// Scope: Unit Test
func TestEditor_ResetToRoleDefault(t *testing.T) {
	override := Matrix{catalog.Equipment: {catalog.ActionEdit: false}}
	working, err := NewWorkingMatrix("user-1", RoleTechnicien, override, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Seeded from the effective matrix, so the override shows up.
	if v, _ := working.Effective().Lookup(catalog.Equipment, catalog.ActionEdit); v {
		t.Fatal("seed ignored the stored override")
	}

	working.ResetToRoleDefault()

	if v, _ := working.Effective().Lookup(catalog.Equipment, catalog.ActionEdit); !v {
		t.Error("reset did not restore the role default")
	}
	if diff := working.Diff(); len(diff) != 0 {
		t.Errorf("diff after reset = %v, want empty", diff)
	}
	if working.Version() != 3 {
		t.Errorf("reset changed the session version: %d", working.Version())
	}
}

// TestPurpose: Validates that a revocation below the role default is kept
// in the diff, and that flipping it back removes it.
// Scope: Unit Test
func TestEditor_DiffTracksBothDirections(t *testing.T) {
	working, err := NewWorkingMatrix("user-1", RoleTechnicien, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := working.SetAction(catalog.Parts, catalog.ActionCreate, false); err != nil {
		t.Fatalf("SetAction: %v", err)
	}
	diff := working.Diff()
	if v, ok := diff.Lookup(catalog.Parts, catalog.ActionCreate); !ok || v {
		t.Errorf("diff = %v, want parts create:false", diff)
	}

	if err := working.SetAction(catalog.Parts, catalog.ActionCreate, true); err != nil {
		t.Fatalf("SetAction: %v", err)
	}
	if diff := working.Diff(); len(diff) != 0 {
		t.Errorf("diff after undo = %v, want empty", diff)
	}
}
