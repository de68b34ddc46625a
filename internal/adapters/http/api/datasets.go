package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lrgtech/peopleanalytics/internal/domain/model"
)

// DatasetDependencies lists, uploads and removes datasets.
type DatasetDependencies interface {
	LoadDatasets(ctx context.Context) []model.Dataset
	Upload(ctx context.Context, name string, content io.Reader) (model.Dataset, error)
	Remove(ctx context.Context, id string) error
}

// DatasetsHandler handles /datasets requests.
type DatasetsHandler struct {
	deps     DatasetDependencies
	maxBytes int64
}

// NewDatasetsHandler creates a new datasets handler.
func NewDatasetsHandler(deps DatasetDependencies, maxBytes int64) *DatasetsHandler {
	return &DatasetsHandler{deps: deps, maxBytes: maxBytes}
}

type datasetResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

func toDatasetResponse(d model.Dataset) datasetResponse {
	return datasetResponse{ID: d.ID, Name: d.Name, Rows: d.RowCount}
}

type listResponse struct {
	Datasets []datasetResponse `json:"datasets"`
}

// HandleList handles GET /datasets. It refreshes the list from the service.
func (h *DatasetsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	datasets := h.deps.LoadDatasets(r.Context())
	resp := listResponse{Datasets: make([]datasetResponse, 0, len(datasets))}
	for _, d := range datasets {
		resp.Datasets = append(resp.Datasets, toDatasetResponse(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleUpload handles POST /datasets with a multipart "file" field.
func (h *DatasetsHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", err)
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrNoFile, err))
		return
	}
	defer func() { _ = file.Close() }()

	ds, err := h.deps.Upload(r.Context(), header.Filename, file)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDatasetResponse(ds))
}

// HandleDelete handles DELETE /datasets/{id}.
func (h *DatasetsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.deps.Remove(r.Context(), id); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
