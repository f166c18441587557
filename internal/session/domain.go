// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"github.com/taibuivan/washpass/internal/platform/constants"
	"github.com/taibuivan/washpass/internal/session/store"
)

// Domain is an independent authentication context sharing the browser
// origin with the others. Each domain has its own storage namespace and
// identity client; nothing else differs, so one Machine type serves all.
type Domain struct {
	Name       string
	Namespace  store.Namespace
	LoginRoute string
	HomeRoute  string
}

// Identity domains of the portal. Admins authenticate through the customer
// domain and are told apart by role.
var (
	CustomerDomain = Domain{
		Name:       "customer",
		Namespace:  store.CustomerNamespace,
		LoginRoute: "/app/login",
		HomeRoute:  "/app/dashboard",
	}

	PartnerDomain = Domain{
		Name:       "partner",
		Namespace:  store.PartnerNamespace,
		LoginRoute: constants.PartnerPathPrefix + "/login",
		HomeRoute:  constants.PartnerPathPrefix + "/dashboard",
	}
)
