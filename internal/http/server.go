// Package http exposes the tracker as a JSON API. Draft entry is a single
// in-process session: one draft at a time, advanced step by step.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"financeflow/internal/core"
	"financeflow/internal/currency"
	applog "financeflow/internal/log"
	"financeflow/internal/services"
	"financeflow/internal/workflow"
)

type Server struct {
	http.Server
	tracker  *services.Tracker
	currency *currency.Service

	mu      sync.Mutex
	session *workflow.Session
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, tracker *services.Tracker, cur *currency.Service) *Server {
	mux := http.NewServeMux()

	limiter := newRateLimiter(240)
	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: withMiddleware(limiter.middleware(mux)),
		},
		tracker:  tracker,
		currency: cur,
		session:  tracker.NewSession(),
	}
	s.RegisterOnShutdown(limiter.shutdown)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/vendors", s.handleSearchVendors)
	mux.HandleFunc("GET /api/items", s.handleSearchItems)

	mux.HandleFunc("POST /api/draft", s.handleStartDraft)
	mux.HandleFunc("GET /api/draft", s.handleGetDraft)
	mux.HandleFunc("DELETE /api/draft", s.handleCancelDraft)
	mux.HandleFunc("POST /api/draft/vendor", s.handleDraftVendor)
	mux.HandleFunc("POST /api/draft/mode", s.handleDraftMode)
	mux.HandleFunc("POST /api/draft/item", s.handleDraftItem)
	mux.HandleFunc("POST /api/draft/quantity", s.handleDraftQuantity)
	mux.HandleFunc("DELETE /api/draft/quantity", s.handleDraftCancelQuantity)
	mux.HandleFunc("POST /api/draft/total", s.handleDraftTotal)
	mux.HandleFunc("POST /api/draft/taxtime", s.handleDraftTaxTime)
	mux.HandleFunc("POST /api/draft/commit", s.handleDraftCommit)

	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleRemoveExpense)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handlePutSettings)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("GET /api/currencies", s.handleCurrencies)

	return s
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", applog.FieldError, err)
	}
}

// writeError maps typed domain errors to status codes. Workflow transition
// errors are conflicts: the operation is legal, the draft just is not at
// that step.
func writeError(w http.ResponseWriter, ctx context.Context, err error) {
	status := http.StatusInternalServerError

	var (
		validation *core.ValidationError
		duplicate  *core.DuplicateNameError
		notFound   *core.NotFoundError
		badImport  *core.ImportFormatError
		transition *workflow.TransitionError
	)
	switch {
	case errors.As(err, &validation):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &duplicate):
		status = http.StatusConflict
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &badImport):
		status = http.StatusBadRequest
	case errors.As(err, &transition):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(ctx, "Request failed",
			applog.FieldRequestID, RequestID(ctx),
			applog.FieldError, err)
	} else {
		slog.DebugContext(ctx, "Request rejected",
			applog.FieldRequestID, RequestID(ctx),
			applog.FieldStatus, status,
			applog.FieldError, err)
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, out any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return &core.ValidationError{Field: "body", Reason: "must be a valid JSON object"}
	}
	return nil
}
