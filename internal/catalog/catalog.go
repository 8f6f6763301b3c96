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

// Package catalog defines the static registry of access-controlled modules
// and the actions each one supports. The catalog is fixed at compile time;
// adding a module or action is a code change and a deployment, never a
// runtime operation.
package catalog

import (
	"errors"
	"fmt"
)

// Action is a controllable operation on a module.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionExport Action = "export"
)

// Key is the stable identifier of a module. Keys are part of the persisted
// override format and must never be renamed without a data migration.
type Key string

const (
	Dashboard             Key = "dashboard"
	WorkOrders            Key = "workOrders"
	Requests              Key = "requests"
	PreventiveMaintenance Key = "preventiveMaintenance"
	Equipment             Key = "equipment"
	Inventory             Key = "inventory"
	Parts                 Key = "parts"
	PurchaseOrders        Key = "purchaseOrders"
	Locations             Key = "locations"
	Meters                Key = "meters"
	People                Key = "people"
	Teams                 Key = "teams"
	Vendors               Key = "vendors"
	Customers             Key = "customers"
	Categories            Key = "categories"
	Checklists            Key = "checklists"
	Files                 Key = "files"
	Analytics             Key = "analytics"
	Reports               Key = "reports"
	Requests2Settings     Key = "requestSettings"
	WorkOrderSettings     Key = "workOrderSettings"
	Notifications         Key = "notifications"
	Subscriptions         Key = "subscriptions"
	Settings              Key = "settings"
)

// Module describes one access-controlled functional area.
type Module struct {
	Key     Key
	Label   string
	Actions []Action
}

// ErrUnknownModule is returned when a module key is not in the catalog.
// Callers must treat this as a configuration bug, not an access denial.
var ErrUnknownModule = errors.New("unknown module")

// crud is the full action vocabulary; shorthand for module definitions.
var crud = []Action{ActionView, ActionCreate, ActionEdit, ActionDelete}

func withExport(actions []Action) []Action {
	out := make([]Action, 0, len(actions)+1)
	out = append(out, actions...)
	return append(out, ActionExport)
}

// modules is the single source of truth for the catalog. Order matters: it
// is the order modules are presented in permission editors.
var modules = []Module{
	{Dashboard, "Dashboard", []Action{ActionView}},
	{WorkOrders, "Work Orders", withExport(crud)},
	{Requests, "Work Requests", withExport(crud)},
	{PreventiveMaintenance, "Preventive Maintenance", crud},
	{Equipment, "Equipment", withExport(crud)},
	{Inventory, "Inventory", withExport(crud)},
	{Parts, "Parts", withExport(crud)},
	{PurchaseOrders, "Purchase Orders", crud},
	{Locations, "Locations", withExport(crud)},
	{Meters, "Meters", crud},
	{People, "People", crud},
	{Teams, "Teams", crud},
	{Vendors, "Vendors", crud},
	{Customers, "Customers", crud},
	{Categories, "Categories", crud},
	{Checklists, "Checklists", crud},
	{Files, "Files", []Action{ActionView, ActionCreate, ActionDelete}},
	{Analytics, "Analytics", []Action{ActionView, ActionExport}},
	{Reports, "Reports", []Action{ActionView, ActionExport}},
	{Requests2Settings, "Request Settings", []Action{ActionView, ActionEdit}},
	{WorkOrderSettings, "Work Order Settings", []Action{ActionView, ActionEdit}},
	{Notifications, "Notifications", []Action{ActionView, ActionEdit}},
	{Subscriptions, "Subscriptions", []Action{ActionView, ActionEdit}},
	{Settings, "Settings", []Action{ActionView, ActionEdit}},
}

// index is built once at init for O(1) lookup.
var index = func() map[Key]Module {
	m := make(map[Key]Module, len(modules))
	for _, mod := range modules {
		m[mod.Key] = mod
	}
	return m
}()

// Modules returns the ordered catalog. The returned slice must not be
// mutated by callers.
func Modules() []Module {
	return modules
}

// Get returns the module for a key, or ErrUnknownModule.
func Get(key Key) (Module, error) {
	mod, ok := index[key]
	if !ok {
		return Module{}, fmt.Errorf("%w: %q", ErrUnknownModule, key)
	}
	return mod, nil
}

// ActionsFor returns the supported actions of a module, or ErrUnknownModule.
func ActionsFor(key Key) ([]Action, error) {
	mod, err := Get(key)
	if err != nil {
		return nil, err
	}
	return mod.Actions, nil
}

// Supports reports whether the module exists and supports the action.
func Supports(key Key, action Action) bool {
	mod, ok := index[key]
	if !ok {
		return false
	}
	for _, a := range mod.Actions {
		if a == action {
			return true
		}
	}
	return false
}
