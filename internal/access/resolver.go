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

// Resolve is the authoritative decision function for one (role, override,
// module, action) query. It is pure: no I/O, no shared state, identical
// inputs always yield identical output.
//
// The pipeline, in order:
//
//  1. Admin bypass: RoleAdmin is granted unconditionally. No stored
//     override can reduce admin access; admin lockout is a worse failure
//     mode than over-privilege.
//  2. Catalog validation: an unknown module/action combination denies and
//     returns ErrInvalidQuery so callers can surface the configuration bug.
//  3. Override lookup: an explicit override entry is authoritative.
//  4. Role default fallback. An unknown role resolves against the
//     read-only template; the result is still valid, and ErrUnknownRole is
//     returned alongside it so callers can log the upstream corruption.
//  5. Invariant post-check: edit/delete deny unless view resolves true for
//     the same module, regardless of raw stored values.
//
// Every error path yields false: a defect here must lose access, never
// grant it.
func Resolve(role Role, override Matrix, key catalog.Key, action catalog.Action) (bool, error) {
	if role == RoleAdmin {
		return true, nil
	}

	if !catalog.Supports(key, action) {
		return false, fmt.Errorf("%w: %s/%s", ErrInvalidQuery, key, action)
	}

	defaults, roleErr := DefaultsFor(role)
	if roleErr != nil {
		defaults = ReadOnlyTemplate()
	}

	allowed := resolveRaw(defaults, override, key, action)

	// Dependency invariant: edit/delete require view. Applied after the
	// raw lookup so inconsistent stored records cannot leak access.
	if allowed && (action == catalog.ActionEdit || action == catalog.ActionDelete) {
		if !resolveRaw(defaults, override, key, catalog.ActionView) {
			allowed = false
		}
	}

	return allowed, roleErr
}

// resolveRaw applies override precedence over role defaults with no
// invariant handling.
func resolveRaw(defaults, override Matrix, key catalog.Key, action catalog.Action) bool {
	if v, ok := override.Lookup(key, action); ok {
		return v
	}
	v, _ := defaults.Lookup(key, action)
	return v
}

// EffectiveMatrix resolves every (module, action) pair in the catalog,
// producing the matrix a user actually operates under. The error, when
// non-nil, is ErrUnknownRole and the matrix is the read-only fallback.
func EffectiveMatrix(role Role, override Matrix) (Matrix, error) {
	var roleErr error
	out := make(Matrix, len(catalog.Modules()))
	for _, mod := range catalog.Modules() {
		for _, action := range mod.Actions {
			allowed, err := Resolve(role, override, mod.Key, action)
			if err != nil {
				roleErr = err
			}
			out.Set(mod.Key, action, allowed)
		}
	}
	return out, roleErr
}
