// Package http provides http transport for the RCA dashboard
package http

import (
	stdhttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	perr "foresight/internal/platform/errors"
	nethttp "foresight/internal/platform/net/http"
	"foresight/internal/services/rca/domain"
	svc "foresight/internal/services/rca/service"
)

// Register mounts dashboard endpoints on the given router
func Register(r nethttp.Router, s *svc.Service) {
	h := &handlers{svc: s}

	nethttp.GetJSON(r, "/scenario/{scenarioID}/audit-trail", h.auditTrail)
	nethttp.GetJSON(r, "/scenario/{scenarioID}/state-changes", h.stateChanges)
	nethttp.GetJSON(r, "/scenario/{scenarioID}/run-comparison", h.compareRuns)
	nethttp.GetJSON(r, "/scenario/{scenarioID}/error-summary", h.errorSummary)
	nethttp.GetJSON(r, "/user/{userID}/journey", h.userJourney)
	nethttp.GetJSON(r, "/run/{runID}/diagnostics", h.runDiagnostics)
	nethttp.GetJSON(r, "/errors/top-categories", h.topCategories)
}

type handlers struct{ svc *svc.Service }

func (h *handlers) auditTrail(r *stdhttp.Request) (any, error) {
	scenarioID, err := pathUUID(r, "scenarioID")
	if err != nil {
		return nil, err
	}

	var f domain.AuditFilter
	if f.Start, err = queryTime(r, "start_date"); err != nil {
		return nil, err
	}
	if f.End, err = queryTime(r, "end_date"); err != nil {
		return nil, err
	}
	if raw := r.URL.Query().Get("event_types"); raw != "" {
		f.EventTypes = strings.Split(raw, ",")
	}

	return h.svc.AuditTrail(r.Context(), scenarioID, f)
}

func (h *handlers) stateChanges(r *stdhttp.Request) (any, error) {
	scenarioID, err := pathUUID(r, "scenarioID")
	if err != nil {
		return nil, err
	}
	return h.svc.StateChanges(r.Context(), scenarioID)
}

func (h *handlers) userJourney(r *stdhttp.Request) (any, error) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		return nil, perr.InvalidArgf("user id required")
	}
	days, err := queryInt(r, "days", 0)
	if err != nil {
		return nil, err
	}
	var scenarioID *uuid.UUID
	if raw := r.URL.Query().Get("scenario_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, perr.InvalidArgf("invalid scenario_id %q", raw)
		}
		scenarioID = &id
	}
	return h.svc.UserJourney(r.Context(), userID, days, scenarioID)
}

func (h *handlers) runDiagnostics(r *stdhttp.Request) (any, error) {
	runID, err := pathUUID(r, "runID")
	if err != nil {
		return nil, err
	}
	return h.svc.RunDiagnostics(r.Context(), runID)
}

func (h *handlers) compareRuns(r *stdhttp.Request) (any, error) {
	scenarioID, err := pathUUID(r, "scenarioID")
	if err != nil {
		return nil, err
	}
	runA, err := queryUUID(r, "run_a_id")
	if err != nil {
		return nil, err
	}
	runB, err := queryUUID(r, "run_b_id")
	if err != nil {
		return nil, err
	}
	return h.svc.CompareRuns(r.Context(), scenarioID, runA, runB)
}

func (h *handlers) topCategories(r *stdhttp.Request) (any, error) {
	days, err := queryInt(r, "days", 0)
	if err != nil {
		return nil, err
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		return nil, err
	}
	return h.svc.TopErrorCategories(r.Context(), days, limit)
}

func (h *handlers) errorSummary(r *stdhttp.Request) (any, error) {
	scenarioID, err := pathUUID(r, "scenarioID")
	if err != nil {
		return nil, err
	}
	return h.svc.ErrorSummary(r.Context(), scenarioID)
}

func pathUUID(r *stdhttp.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, perr.InvalidArgf("invalid %s %q", name, raw)
	}
	return id, nil
}

func queryUUID(r *stdhttp.Request, name string) (uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return uuid.Nil, perr.InvalidArgf("%s required", name)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, perr.InvalidArgf("invalid %s %q", name, raw)
	}
	return id, nil
}

func queryTime(r *stdhttp.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, perr.InvalidArgf("invalid %s %q, want RFC3339", name, raw)
	}
	return &t, nil
}

func queryInt(r *stdhttp.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, perr.InvalidArgf("invalid %s %q", name, raw)
	}
	return v, nil
}
