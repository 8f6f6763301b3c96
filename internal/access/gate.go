package access

import "github.com/openmaint/openmaint/internal/catalog"

// Gate is the authorization facade consumed by screens and routes. It is an
// immutable snapshot: the effective matrix is resolved once at construction
// and every query afterwards is a map lookup. UI code must go through the
// gate rather than reading raw matrices.
type Gate struct {
	role      Role
	effective Matrix
}

// NewGate resolves the effective matrix for a (role, override) pair. The
// error, when non-nil, is ErrUnknownRole; the gate is still usable and
// carries the read-only fallback.
func NewGate(role Role, override Matrix) (*Gate, error) {
	effective, err := EffectiveMatrix(role, override)
	return &Gate{role: role, effective: effective}, err
}

// IsAdmin reports whether the gate belongs to an administrator.
func (g *Gate) IsAdmin() bool { return g.role == RoleAdmin }

// Role returns the role the gate was built for.
func (g *Gate) Role() Role { return g.role }

// Allows reports the effective permission for one (module, action) pair.
// Unknown combinations are false: the gate fails closed.
func (g *Gate) Allows(key catalog.Key, action catalog.Action) bool {
	if g.role == RoleAdmin {
		return true
	}
	v, _ := g.effective.Lookup(key, action)
	return v
}

func (g *Gate) CanView(key catalog.Key) bool   { return g.Allows(key, catalog.ActionView) }
func (g *Gate) CanCreate(key catalog.Key) bool { return g.Allows(key, catalog.ActionCreate) }
func (g *Gate) CanEdit(key catalog.Key) bool   { return g.Allows(key, catalog.ActionEdit) }
func (g *Gate) CanDelete(key catalog.Key) bool { return g.Allows(key, catalog.ActionDelete) }
func (g *Gate) CanExport(key catalog.Key) bool { return g.Allows(key, catalog.ActionExport) }

// Effective returns a copy of the resolved matrix for display purposes
// (permission editors render it); authorization decisions go through the
// Can* methods.
func (g *Gate) Effective() Matrix { return g.effective.Clone() }
