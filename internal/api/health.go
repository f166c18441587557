// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/taibuivan/washpass/internal/platform/constants"
	"github.com/taibuivan/washpass/internal/platform/respond"
)

const readinessTimeout = 3 * time.Second

// HealthCheck is one dependency probed by /ready.
type HealthCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

type healthHandler struct {
	checks []HealthCheck
	logger *slog.Logger
}

type checkResult struct {
	Name  string `json:"name"`
	IsOK  bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// NewHealthHandlers creates the /health and /ready http.HandlerFuncs.
// With the memory store there is nothing to probe and /ready is always ready.
func NewHealthHandlers(checks []HealthCheck, logger *slog.Logger) (liveness, readiness http.HandlerFunc) {
	handler := &healthHandler{checks: checks, logger: logger}
	return handler.liveness, handler.readiness
}

// liveness handles GET /health.
func (handler *healthHandler) liveness(writer http.ResponseWriter, _ *http.Request) {
	respond.OK(writer, map[string]string{constants.FieldStatus: "ok"})
}

// readiness handles GET /ready.
func (handler *healthHandler) readiness(writer http.ResponseWriter, request *http.Request) {
	ctx, cancel := context.WithTimeout(request.Context(), readinessTimeout)
	defer cancel()

	results := make([]checkResult, 0, len(handler.checks))
	ready := true

	for _, check := range handler.checks {
		result := checkResult{Name: check.Name, IsOK: true}
		if err := check.Probe(ctx); err != nil {
			result.IsOK = false
			result.Error = err.Error()
			ready = false
			handler.logger.Error("readiness_check_failed", slog.String("dependency", check.Name), slog.Any("error", err))
		}
		results = append(results, result)
	}

	status, httpStatus := "ready", http.StatusOK
	if !ready {
		status, httpStatus = "degraded", http.StatusServiceUnavailable
	}

	respond.JSON(writer, httpStatus, respond.SuccessEnvelope{Data: map[string]any{
		constants.FieldStatus: status,
		constants.FieldChecks: results,
	}})
}
