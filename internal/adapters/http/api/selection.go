package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	service "github.com/lrgtech/peopleanalytics/internal/app"
	"github.com/lrgtech/peopleanalytics/internal/domain/model"
)

// SelectionDependencies changes what the session shows.
type SelectionDependencies interface {
	ApplySelection(ctx context.Context, sel service.Selection) error
	SelectView(ctx context.Context, kind model.ViewKind) error
	Reload(ctx context.Context)
}

// SelectionHandler handles selection and view changes.
type SelectionHandler struct {
	deps SelectionDependencies
}

// NewSelectionHandler creates a new selection handler.
func NewSelectionHandler(deps SelectionDependencies) *SelectionHandler {
	return &SelectionHandler{deps: deps}
}

// selectionRequest replaces the whole selection. Null or missing fields clear.
type selectionRequest struct {
	DatasetID string `json:"dataset_id"`
	Year      *int   `json:"year"`
	Month     *int   `json:"month"`
}

type viewRequest struct {
	View string `json:"view"`
}

// HandleSelection handles PUT /selection.
func (h *SelectionHandler) HandleSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	sel := service.Selection{DatasetID: req.DatasetID, Year: req.Year, Month: req.Month}
	if err := h.deps.ApplySelection(r.Context(), sel); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSelectView handles PUT /view.
func (h *SelectionHandler) HandleSelectView(w http.ResponseWriter, r *http.Request) {
	var req viewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	kind, err := model.ParseViewKind(req.View)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := h.deps.SelectView(r.Context(), kind); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReload handles POST /view/reload.
func (h *SelectionHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	h.deps.Reload(r.Context())
	w.WriteHeader(http.StatusAccepted)
}
