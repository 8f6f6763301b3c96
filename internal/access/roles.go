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

// Role is the named permission bundle assigned to a user by the identity
// provider. The set of roles is closed; anything else is ErrUnknownRole.
type Role string

const (
	// RoleAdmin resolves to allow-everything by an engine rule, never by
	// template content. Stored matrices cannot reduce admin access.
	RoleAdmin Role = "ADMIN"

	// RoleTechnicien is the operational role: works orders end to end,
	// no destructive actions, view-only on administrative modules.
	RoleTechnicien Role = "TECHNICIEN"

	// RoleVisualiseur is the read-only role. Sensitive modules (people,
	// settings) are hidden entirely.
	RoleVisualiseur Role = "VISUALISEUR"

	// RoleDemandeur can raise and follow work requests, nothing else.
	RoleDemandeur Role = "DEMANDEUR"

	// RoleChefEquipe is TECHNICIEN plus people/team management and
	// delete rights on work orders.
	RoleChefEquipe Role = "CHEF_EQUIPE"
)

// Roles lists every known role, admin first.
func Roles() []Role {
	return []Role{RoleAdmin, RoleTechnicien, RoleVisualiseur, RoleDemandeur, RoleChefEquipe}
}

// KnownRole reports whether the role is in the closed set.
func KnownRole(role Role) bool {
	for _, r := range Roles() {
		if r == role {
			return true
		}
	}
	return false
}

// administrative modules get view-only treatment in the operational
// template and are hidden from read-only roles.
var sensitiveModules = map[catalog.Key]bool{
	catalog.People:            true,
	catalog.Teams:             true,
	catalog.Requests2Settings: true,
	catalog.WorkOrderSettings: true,
	catalog.Settings:          true,
	catalog.Subscriptions:     true,
}

// operationalModules are the modules a technician works in day to day.
var operationalModules = map[catalog.Key]bool{
	catalog.Dashboard:             true,
	catalog.WorkOrders:            true,
	catalog.Requests:              true,
	catalog.PreventiveMaintenance: true,
	catalog.Equipment:             true,
	catalog.Inventory:             true,
	catalog.Parts:                 true,
	catalog.Locations:             true,
	catalog.Meters:                true,
	catalog.Files:                 true,
	catalog.Checklists:            true,
}

// DefaultsFor returns the canonical default matrix for a role, total over
// every module in the catalog. Unknown roles return ErrUnknownRole; callers
// recover with the read-only template but must surface the occurrence.
func DefaultsFor(role Role) (Matrix, error) {
	switch role {
	case RoleAdmin:
		return fullAccessTemplate(), nil
	case RoleTechnicien:
		return operationalTemplate(false), nil
	case RoleChefEquipe:
		return operationalTemplate(true), nil
	case RoleVisualiseur:
		return ReadOnlyTemplate(), nil
	case RoleDemandeur:
		return requesterTemplate(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
}

// fullAccessTemplate allows every supported action on every module. It is
// informational (permission editors display it); the engine grants admins
// through the bypass rule, not through this matrix.
func fullAccessTemplate() Matrix {
	m := make(Matrix, len(catalog.Modules()))
	for _, mod := range catalog.Modules() {
		for _, action := range mod.Actions {
			m.Set(mod.Key, action, true)
		}
	}
	return m
}

// operationalTemplate is the technician shape: view/create/edit on
// operational modules, delete withheld unless the role is a team lead,
// view-only elsewhere.
func operationalTemplate(teamLead bool) Matrix {
	m := make(Matrix, len(catalog.Modules()))
	for _, mod := range catalog.Modules() {
		for _, action := range mod.Actions {
			allowed := false
			switch {
			case action == catalog.ActionView:
				allowed = true
			case operationalModules[mod.Key]:
				switch action {
				case catalog.ActionCreate, catalog.ActionEdit, catalog.ActionExport:
					allowed = true
				case catalog.ActionDelete:
					allowed = teamLead && mod.Key == catalog.WorkOrders
				}
			case teamLead && (mod.Key == catalog.People || mod.Key == catalog.Teams):
				allowed = action == catalog.ActionCreate || action == catalog.ActionEdit
			}
			m.Set(mod.Key, action, allowed)
		}
	}
	return m
}

// ReadOnlyTemplate is the most restrictive built-in shape: view everywhere
// except sensitive modules, nothing else. It doubles as the fallback when
// an unknown role reaches the engine.
func ReadOnlyTemplate() Matrix {
	m := make(Matrix, len(catalog.Modules()))
	for _, mod := range catalog.Modules() {
		for _, action := range mod.Actions {
			allowed := action == catalog.ActionView && !sensitiveModules[mod.Key]
			m.Set(mod.Key, action, allowed)
		}
	}
	return m
}

// requesterTemplate sees the dashboard and can raise work requests.
func requesterTemplate() Matrix {
	m := ReadOnlyTemplate()
	for key := range m {
		if key != catalog.Dashboard && key != catalog.Requests {
			for action := range m[key] {
				m[key][action] = false
			}
		}
	}
	m.Set(catalog.Requests, catalog.ActionCreate, true)
	m.Set(catalog.Requests, catalog.ActionEdit, true)
	return m
}
