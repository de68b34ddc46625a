// Package api is the bridge HTTP surface a presentation layer uses to drive
// one dashboard session.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	service "github.com/lrgtech/peopleanalytics/internal/app"
	"github.com/lrgtech/peopleanalytics/internal/domain/comparison"
	"github.com/lrgtech/peopleanalytics/internal/domain/faults"
	"github.com/lrgtech/peopleanalytics/internal/domain/filter"
	"github.com/lrgtech/peopleanalytics/internal/domain/model"
)

// Dependencies is the session surface the handlers use.
type Dependencies interface {
	Snapshot() service.Snapshot
	ViewState(kind model.ViewKind) (service.ViewState, error)
	Locale() comparison.Locale

	LoadDatasets(ctx context.Context) []model.Dataset
	Upload(ctx context.Context, name string, content io.Reader) (model.Dataset, error)
	Remove(ctx context.Context, id string) error

	ApplySelection(ctx context.Context, sel service.Selection) error
	SelectView(ctx context.Context, kind model.ViewKind) error
	Reload(ctx context.Context)

	Health(ctx context.Context) (string, error)
}

// Server wires HTTP routes for the bridge API.
type Server struct {
	healthHandler    *HealthHandler
	datasetsHandler  *DatasetsHandler
	selectionHandler *SelectionHandler
	viewsHandler     *ViewsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	o := options{maxUploadBytes: defaultMaxUploadBytes}
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		healthHandler:    NewHealthHandler(deps),
		datasetsHandler:  NewDatasetsHandler(deps, o.maxUploadBytes),
		selectionHandler: NewSelectionHandler(deps),
		viewsHandler:     NewViewsHandler(deps),
	}
}

// Register attaches all routes to r.
func (s *Server) Register(_ context.Context, r *mux.Router) {
	r.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleMetrics, "healthz")).Methods(http.MethodGet)
	r.HandleFunc("/status", MetricsMiddleware(s.healthHandler.HandleStatus, "status")).Methods(http.MethodGet)

	r.HandleFunc("/state", MetricsMiddleware(s.viewsHandler.HandleState, "state")).Methods(http.MethodGet)
	r.HandleFunc("/views/{kind}", MetricsMiddleware(s.viewsHandler.HandleView, "view")).Methods(http.MethodGet)
	r.HandleFunc("/view", MetricsMiddleware(s.selectionHandler.HandleSelectView, "select_view")).Methods(http.MethodPut)
	r.HandleFunc("/view/reload", MetricsMiddleware(s.selectionHandler.HandleReload, "reload")).Methods(http.MethodPost)
	r.HandleFunc("/selection", MetricsMiddleware(s.selectionHandler.HandleSelection, "selection")).Methods(http.MethodPut)

	r.HandleFunc("/datasets", MetricsMiddleware(s.datasetsHandler.HandleList, "list_datasets")).Methods(http.MethodGet)
	r.HandleFunc("/datasets", MetricsMiddleware(s.datasetsHandler.HandleUpload, "upload_dataset")).Methods(http.MethodPost)
	r.HandleFunc("/datasets/{id}", MetricsMiddleware(s.datasetsHandler.HandleDelete, "delete_dataset")).Methods(http.MethodDelete)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps a domain error onto a status and code.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, faults.ErrValidation),
		errors.Is(err, filter.ErrInvalidMonth),
		errors.Is(err, model.ErrUnknownView):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, filter.ErrUnknownDataset):
		writeError(w, http.StatusConflict, "unknown_dataset", err)
	case errors.Is(err, faults.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, faults.ErrTransport):
		writeError(w, http.StatusBadGateway, "upstream_error", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
