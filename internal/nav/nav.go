// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package nav builds the role-specific navigation rendered into every view.
package nav

import (
	"strings"

	"github.com/taibuivan/washpass/internal/platform/sec"
)

// Item is one navigation entry.
type Item struct {
	View  string `json:"view"`
	Label string `json:"label"`
	Href  string `json:"href"`
}

var (
	customerMenu = []Item{
		{View: "dashboard", Label: "Dashboard", Href: "/app/dashboard"},
		{View: "plans", Label: "Wash plans", Href: "/app/plans"},
		{View: "billing", Label: "Billing", Href: "/app/billing"},
		{View: "codes", Label: "My codes", Href: "/app/codes"},
	}

	partnerMenu = []Item{
		{View: "dashboard", Label: "Dashboard", Href: "/partner/dashboard"},
		{View: "validate", Label: "Validate code", Href: "/partner/validate"},
		{View: "history", Label: "Wash history", Href: "/partner/history"},
	}

	adminMenu = []Item{
		{View: "overview", Label: "Overview", Href: "/admin"},
		{View: "partners", Label: "Partners", Href: "/admin/partners"},
		{View: "customers", Label: "Customers", Href: "/admin/customers"},
	}

	anonymousMenu = []Item{
		{View: "login", Label: "Log in", Href: "/app/login"},
		{View: "partner-login", Label: "Partner log in", Href: "/partner/login"},
	}
)

// Menu returns the navigation of role. An empty role gets the public menu.
func Menu(role sec.Role) []Item {
	var items []Item
	switch {
	case role.Is(sec.RoleAdmin):
		items = adminMenu
	case role.Is(sec.RolePartner):
		items = partnerMenu
	case role.Is(sec.RoleCustomer):
		items = customerMenu
	default:
		items = anonymousMenu
	}
	return append([]Item(nil), items...)
}

// Lookup returns the menu item of role for view, if that role has one.
func Lookup(role sec.Role, view string) (Item, bool) {
	view = strings.ToLower(view)
	for _, item := range Menu(role) {
		if item.View == view {
			return item, true
		}
	}
	return Item{}, false
}
