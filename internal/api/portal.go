// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/washpass/internal/guard"
	"github.com/taibuivan/washpass/internal/handoff"
	"github.com/taibuivan/washpass/internal/identity"
	"github.com/taibuivan/washpass/internal/nav"
	"github.com/taibuivan/washpass/internal/platform/apperr"
	"github.com/taibuivan/washpass/internal/platform/ctxkey"
	"github.com/taibuivan/washpass/internal/platform/ctxutil"
	requestutil "github.com/taibuivan/washpass/internal/platform/request"
	"github.com/taibuivan/washpass/internal/platform/respond"
	"github.com/taibuivan/washpass/internal/platform/sec"
	"github.com/taibuivan/washpass/internal/portal"
	"github.com/taibuivan/washpass/internal/session"
)

// picker selects one domain's machine from a mounted portal.
type picker func(p *portal.Portal) *session.Machine

var (
	customerMachine picker = func(p *portal.Portal) *session.Machine { return p.Customer }
	partnerMachine  picker = func(p *portal.Portal) *session.Machine { return p.Partner }
)

// PortalHandler serves the session and view routes of every identity domain.
type PortalHandler struct {
	registry    *portal.Registry
	restoreWait time.Duration
}

// NewPortalHandler creates the handler. Guarded views wait up to restoreWait
// for a pending restore before answering with the loading view.
func NewPortalHandler(registry *portal.Registry, restoreWait time.Duration) *PortalHandler {
	return &PortalHandler{registry: registry, restoreWait: restoreWait}
}

// Routes returns the portal router.
//
//	/session                          both domains' session view
//	/app/{login,register,logout}      customer session
//	/app/{view}                       customer views, any authenticated principal
//	/admin/login                      admin login through the customer domain
//	/admin, /admin/{view}             ADMIN views
//	/partner/{login,register,logout}  partner session
//	/partner/{view}                   PARTNER views
func (h *PortalHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.mountPortal)

	r.Get("/session", h.sessions)

	r.Route("/app", func(app chi.Router) {
		app.Get("/login", h.loginPage(customerMachine, ""))
		app.Post("/login", h.login(customerMachine))
		app.Post("/register", h.register(customerMachine, validateCustomerRegistration))
		app.Post("/logout", h.logout(customerMachine))

		app.With(h.guard(customerMachine, guard.Rule{LoginRoute: session.CustomerDomain.LoginRoute})).
			Get("/{view}", h.view(sec.RoleCustomer, ""))
	})

	r.Route("/admin", func(admin chi.Router) {
		admin.Get("/login", h.loginPage(customerMachine, sec.RoleAdmin))
		admin.Post("/login", h.adminLogin)

		admin.Group(func(views chi.Router) {
			views.Use(h.guard(customerMachine, guard.Rule{RequiredRole: sec.RoleAdmin, LoginRoute: "/admin/login"}))
			views.Get("/", h.view(sec.RoleAdmin, "overview"))
			views.Get("/{view}", h.view(sec.RoleAdmin, ""))
		})
	})

	r.Route("/partner", func(partner chi.Router) {
		partner.Get("/login", h.loginPage(partnerMachine, ""))
		partner.Post("/login", h.login(partnerMachine))
		partner.Post("/register", h.register(partnerMachine, validatePartnerRegistration))
		partner.Post("/logout", h.logout(partnerMachine))

		partner.With(h.guard(partnerMachine, guard.Rule{RequiredRole: sec.RolePartner, LoginRoute: session.PartnerDomain.LoginRoute})).
			Get("/{view}", h.view(sec.RolePartner, ""))
	})

	return r
}

// # Mounting

// mountPortal resolves the origin's portal, applying any handoff token in
// the URL before the route is handled.
func (h *PortalHandler) mountPortal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		origin := ctxutil.GetOrigin(request.Context())
		if origin == "" {
			respond.Error(writer, request, apperr.Internal(errors.New("api: request has no origin scope")))
			return
		}

		p := h.registry.Resolve(request.Context(), origin, handoff.NewRequestLocation(writer, request))
		ctx := context.WithValue(request.Context(), ctxkey.KeyPortal, p)
		next.ServeHTTP(writer, request.WithContext(ctx))
	})
}

func portalFrom(ctx context.Context) *portal.Portal {
	p, _ := ctx.Value(ctxkey.KeyPortal).(*portal.Portal)
	return p
}

func (h *PortalHandler) guard(pick picker, rule guard.Rule) func(http.Handler) http.Handler {
	return guard.Middleware(rule, guard.DefaultHomes, func(request *http.Request) *session.Machine {
		if p := portalFrom(request.Context()); p != nil {
			return pick(p)
		}
		return nil
	}, h.restoreWait)
}

// # Session Endpoints

// sessions handles GET /session.
func (h *PortalHandler) sessions(writer http.ResponseWriter, request *http.Request) {
	p := portalFrom(request.Context())
	respond.OK(writer, map[string]SessionView{
		session.CustomerDomain.Name: newSessionView(p.Customer.Domain(), p.Customer.Snapshot()),
		session.PartnerDomain.Name:  newSessionView(p.Partner.Domain(), p.Partner.Snapshot()),
	})
}

// loginPage handles GET {domain}/login. A visitor already signed in with a
// suitable role is sent home instead.
func (h *PortalHandler) loginPage(pick picker, requiredRole sec.Role) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		m := pick(portalFrom(request.Context()))
		snapshot := m.Snapshot()

		if snapshot.Authenticated && snapshot.Principal != nil &&
			(requiredRole == "" || snapshot.Principal.Role.Is(requiredRole)) {
			respond.SeeOther(writer, request, guard.DefaultHomes.For(snapshot.Principal.Role))
			return
		}

		respond.OK(writer, LoginView{
			View:    "login",
			Session: newSessionView(m.Domain(), snapshot),
		})
	}
}

// login handles POST {domain}/login.
func (h *PortalHandler) login(pick picker) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		input, err := decodeLogin(request)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		m := pick(portalFrom(request.Context()))
		snapshot, err := m.Login(request.Context(), input)
		if err != nil {
			respond.Error(writer, request, authFailure(err))
			return
		}

		respond.OK(writer, newSessionView(m.Domain(), snapshot))
	}
}

/*
adminLogin handles POST /admin/login.

Admins sign in through the customer domain. The role in the principal the
identity backend returned decides access: anyone else is signed straight
back out and refused. The unverified role claim inside the token is only
compared for diagnostics.
*/
func (h *PortalHandler) adminLogin(writer http.ResponseWriter, request *http.Request) {
	ctx := request.Context()

	input, err := decodeLogin(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	m := portalFrom(ctx).Customer
	snapshot, err := m.Login(ctx, input)
	if err != nil {
		respond.Error(writer, request, authFailure(err))
		return
	}

	actual := snapshot.Principal.Role
	if claimed, ok := sec.PeekRole(snapshot.Token); ok && !claimed.Is(actual) {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "admin_role_claim_mismatch",
			slog.String("claimed", string(claimed)),
			slog.String("actual", string(actual)),
		)
	}

	if !actual.Is(sec.RoleAdmin) {
		m.Logout(ctx)
		respond.Error(writer, request, apperr.Forbidden("This account does not have admin access"))
		return
	}

	respond.OK(writer, newSessionView(m.Domain(), snapshot))
}

// register handles POST {domain}/register.
func (h *PortalHandler) register(pick picker, check func(session.RegisterInput) error) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		input, err := decodeRegistration(request, check)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		m := pick(portalFrom(request.Context()))
		snapshot, err := m.Register(request.Context(), input)
		if err != nil {
			respond.Error(writer, request, authFailure(err))
			return
		}

		respond.Created(writer, newSessionView(m.Domain(), snapshot))
	}
}

// logout handles POST {domain}/logout. It always succeeds.
func (h *PortalHandler) logout(pick picker) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		pick(portalFrom(request.Context())).Logout(request.Context())
		respond.NoContent(writer)
	}
}

// # Views

// view renders a guarded view of role's menu. fallback names the view of
// the bare route.
func (h *PortalHandler) view(role sec.Role, fallback string) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		snapshot, ok := guard.SnapshotFrom(request.Context())
		if !ok || snapshot.Principal == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}

		name := requestutil.Param(request, "view")
		if name == "" {
			name = fallback
		}

		item, found := nav.Lookup(role, name)
		if !found {
			respond.Error(writer, request, apperr.NotFound("View"))
			return
		}

		respond.OK(writer, PageView{
			View:      item.View,
			Title:     item.Label,
			Principal: snapshot.Principal,
			Menu:      nav.Menu(snapshot.Principal.Role),
		})
	}
}

// # Error Mapping

// authFailure turns a login or registration error into the single message
// the user sees.
func authFailure(err error) *apperr.AppError {
	if errors.Is(err, session.ErrSuperseded) {
		return apperr.Conflict("Your session changed while signing in. Please try again.")
	}

	var httpErr *identity.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 {
		code := httpErr.Code
		if code == "" {
			code = http.StatusText(httpErr.StatusCode)
		}
		return &apperr.AppError{
			Code:       code,
			Message:    identity.Message(err),
			HTTPStatus: httpErr.StatusCode,
			Cause:      err,
		}
	}

	return apperr.BadGateway(identity.Message(err), err)
}
