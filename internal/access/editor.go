// Copyright 2026 The OpenMaint Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package access

import (
	"fmt"

	"github.com/openmaint/openmaint/internal/catalog"
)

// WorkingMatrix is an in-progress edit of one user's permissions. It is
// seeded from the user's effective matrix (overrides merged over role
// defaults), so an administrator edits what the user actually has, not the
// raw override deltas. Every mutation re-applies the dependency invariant,
// so a working matrix can never be committed in a violating state.
//
// A WorkingMatrix is not safe for concurrent use; each edit session owns
// its own copy.
type WorkingMatrix struct {
	userID   string
	role     Role
	defaults Matrix
	work     Matrix

	// version is the stored override version observed at BeginEdit
	// (0 when the user had no override); Commit passes it to the store
	// for the optimistic-concurrency check.
	version int64
}

// NewWorkingMatrix seeds an edit session for a user. The override may be
// nil when the user has none; version is the stored record version at read
// time.
func NewWorkingMatrix(userID string, role Role, override Matrix, version int64) (*WorkingMatrix, error) {
	defaults, err := DefaultsFor(role)
	if err != nil {
		return nil, err
	}
	effective, _ := EffectiveMatrix(role, override)
	return &WorkingMatrix{
		userID:   userID,
		role:     role,
		defaults: defaults,
		work:     effective,
		version:  version,
	}, nil
}

// UserID returns the user being edited.
func (w *WorkingMatrix) UserID() string { return w.userID }

// Role returns the role whose defaults the edit diffs against.
func (w *WorkingMatrix) Role() Role { return w.role }

// Version returns the stored override version observed at edit start.
func (w *WorkingMatrix) Version() int64 { return w.version }

// Effective returns a copy of the current working state.
func (w *WorkingMatrix) Effective() Matrix { return w.work.Clone() }

// SetAction applies one edit and propagates the dependency invariant
// forward: turning view off forces edit and delete off in the same module;
// turning edit or delete on forces view on. Unknown module/action
// combinations are rejected before they can reach the store.
func (w *WorkingMatrix) SetAction(key catalog.Key, action catalog.Action, value bool) error {
	if !catalog.Supports(key, action) {
		return fmt.Errorf("%w: %s/%s", ErrInvalidQuery, key, action)
	}

	w.work.Set(key, action, value)

	switch {
	case action == catalog.ActionView && !value:
		for _, dependent := range []catalog.Action{catalog.ActionEdit, catalog.ActionDelete} {
			if catalog.Supports(key, dependent) {
				w.work.Set(key, dependent, false)
			}
		}
	case (action == catalog.ActionEdit || action == catalog.ActionDelete) && value:
		w.work.Set(key, catalog.ActionView, true)
	}
	return nil
}

// ResetToRoleDefault discards every override for the session, re-seeding
// the working state from the role defaults.
func (w *WorkingMatrix) ResetToRoleDefault() {
	w.work = w.defaults.Clone()
}

// Diff returns the sparse override: only entries that differ from the role
// default. An untouched session diffs to an empty matrix, and a later role
// change automatically picks up the new defaults for every module the
// administrator never touched.
func (w *WorkingMatrix) Diff() Matrix {
	diff := make(Matrix)
	for _, mod := range catalog.Modules() {
		for _, action := range mod.Actions {
			worked, ok := w.work.Lookup(mod.Key, action)
			if !ok {
				continue
			}
			def, _ := w.defaults.Lookup(mod.Key, action)
			if worked != def {
				diff.Set(mod.Key, action, worked)
			}
		}
	}

	// Storage invariant: a persisted edit:true or delete:true always
	// carries view:true in the same module, so the record stays valid on
	// its own even after a later role change alters the defaults.
	for key, set := range diff {
		if set[catalog.ActionEdit] || set[catalog.ActionDelete] {
			diff.Set(key, catalog.ActionView, true)
		}
	}
	return diff
}
