// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package guard

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/taibuivan/washpass/internal/platform/apperr"
	"github.com/taibuivan/washpass/internal/platform/ctxkey"
	"github.com/taibuivan/washpass/internal/platform/ctxutil"
	"github.com/taibuivan/washpass/internal/platform/metrics"
	"github.com/taibuivan/washpass/internal/platform/respond"
	"github.com/taibuivan/washpass/internal/session"
)

// MachineFunc resolves the machine that guards request.
type MachineFunc func(request *http.Request) *session.Machine

// LoadingView is the body of a Pending response.
type LoadingView struct {
	State   string `json:"state"`
	Message string `json:"message"`
}

/*
Middleware enforces rule on every request of a chi route group.

A request that finds the session still restoring waits up to wait for it to
settle before answering Pending. Redirects use 303 so the browser follows
with a GET. Allowed requests carry the admitted snapshot in their context.
*/
func Middleware(rule Rule, homes Homes, machine MachineFunc, wait time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := machine(request)
			if m == nil {
				respond.Error(writer, request, apperr.ServiceUnavailable("Session is not available"))
				return
			}

			snapshot := m.Snapshot()
			if snapshot.Loading {
				snapshot = awaitSettled(request.Context(), m, wait)
			}

			decision := Decide(snapshot, rule, homes)
			metrics.RecordGuardDecision(decision.Outcome.String())
			ctxutil.GetLogger(request.Context()).DebugContext(request.Context(), "route_guard_decision",
				slog.String("path", request.URL.Path),
				slog.String("outcome", decision.Outcome.String()),
			)

			switch decision.Outcome {
			case Pending:
				writer.Header().Set("Retry-After", "1")
				respond.Accepted(writer, LoadingView{State: snapshot.State.String(), Message: "Restoring your session"})
			case RedirectLogin, RedirectHome:
				respond.SeeOther(writer, request, decision.Location)
			default:
				next.ServeHTTP(writer, request.WithContext(WithSnapshot(request.Context(), snapshot)))
			}
		})
	}
}

// awaitSettled waits for the machine's first settle, the request's end or
// wait, whichever comes first, and returns the snapshot at that point.
func awaitSettled(ctx context.Context, m *session.Machine, wait time.Duration) session.Snapshot {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-m.Settled():
	case <-timer.C:
	case <-ctx.Done():
	}
	return m.Snapshot()
}

// # Context

// WithSnapshot attaches the admitted session to ctx.
func WithSnapshot(ctx context.Context, snapshot session.Snapshot) context.Context {
	return context.WithValue(ctx, ctxkey.KeySession, snapshot)
}

// SnapshotFrom returns the session a guard admitted, if any.
func SnapshotFrom(ctx context.Context) (session.Snapshot, bool) {
	snapshot, ok := ctx.Value(ctxkey.KeySession).(session.Snapshot)
	return snapshot, ok
}
