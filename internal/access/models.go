// Package access implements the permission resolution engine: role default
// templates, per-user overrides, the resolution pipeline, the override
// editor, and the authorization gate consumed by every screen.
package access

import (
	"context"
	"errors"
	"time"

	"github.com/openmaint/openmaint/internal/catalog"
)

// Domain errors
var (
	ErrUnknownRole      = errors.New("unknown role")
	ErrInvalidQuery     = errors.New("invalid permission query")
	ErrOverrideNotFound = errors.New("override not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrStaleOverride    = errors.New("override modified since edit began")
	ErrStoreUnavailable = errors.New("override store unavailable")
)

// ActionSet maps actions of one module to allow/deny flags. Keys must be
// drawn from the module's supported actions.
type ActionSet map[catalog.Action]bool

// Clone returns a deep copy of the set.
func (s ActionSet) Clone() ActionSet {
	out := make(ActionSet, len(s))
	for a, v := range s {
		out[a] = v
	}
	return out
}

// Matrix maps module keys to action sets. A default matrix covers every
// module in the catalog; an override matrix is sparse and contains only
// entries an administrator explicitly changed.
type Matrix map[catalog.Key]ActionSet

// Clone returns a deep copy of the matrix.
func (m Matrix) Clone() Matrix {
	out := make(Matrix, len(m))
	for k, s := range m {
		out[k] = s.Clone()
	}
	return out
}

// Lookup returns the stored flag for (key, action) and whether an explicit
// entry exists.
func (m Matrix) Lookup(key catalog.Key, action catalog.Action) (bool, bool) {
	set, ok := m[key]
	if !ok {
		return false, false
	}
	v, ok := set[action]
	return v, ok
}

// Set records an explicit flag, allocating the action set on first use.
func (m Matrix) Set(key catalog.Key, action catalog.Action, value bool) {
	set, ok := m[key]
	if !ok {
		set = make(ActionSet)
		m[key] = set
	}
	set[action] = value
}

// Normalize returns a copy of the matrix with unknown module keys and
// unsupported actions dropped (forward-compatible skip for records written
// by newer deployments), and with edit/delete cleared wherever the same
// entry explicitly turns view off. Records produced by older editors may
// violate the dependency invariant; resolution never trusts them.
func (m Matrix) Normalize() Matrix {
	out := make(Matrix, len(m))
	for key, set := range m {
		for action, value := range set {
			if !catalog.Supports(key, action) {
				continue
			}
			out.Set(key, action, value)
		}
	}
	for _, set := range out {
		if view, ok := set[catalog.ActionView]; ok && !view {
			for _, dependent := range []catalog.Action{catalog.ActionEdit, catalog.ActionDelete} {
				if _, ok := set[dependent]; ok {
					set[dependent] = false
				}
			}
		}
	}
	return out
}

// OverrideRecord is the persisted per-user override: a sparse matrix plus
// the optimistic-concurrency version incremented on every save.
type OverrideRecord struct {
	UserID    string
	Matrix    Matrix
	Version   int64
	UpdatedAt time.Time
}

// OverrideRepository is the persistence boundary for per-user overrides.
type OverrideRepository interface {
	// Get retrieves the override record for a user.
	// Returns ErrOverrideNotFound if the user has no override.
	Get(ctx context.Context, userID string) (*OverrideRecord, error)

	// Put replaces the stored record wholesale. expectedVersion is the
	// version read at edit time (0 when no record existed); a mismatch
	// returns ErrStaleOverride.
	Put(ctx context.Context, record *OverrideRecord, expectedVersion int64) error

	// Delete removes the override, subject to the same version check.
	Delete(ctx context.Context, userID string, expectedVersion int64) error
}

// RoleDirectory resolves a user identifier to their assigned role. The
// identity provider owns the user lifecycle; this is the read-model the
// engine needs.
type RoleDirectory interface {
	RoleOf(ctx context.Context, userID string) (Role, error)
}
