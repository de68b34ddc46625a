package api

import (
	"net/http"

	"github.com/gorilla/mux"

	service "github.com/lrgtech/peopleanalytics/internal/app"
	"github.com/lrgtech/peopleanalytics/internal/domain/comparison"
	"github.com/lrgtech/peopleanalytics/internal/domain/model"
)

// ViewDependencies reads session state.
type ViewDependencies interface {
	Snapshot() service.Snapshot
	ViewState(kind model.ViewKind) (service.ViewState, error)
	Locale() comparison.Locale
}

// ViewsHandler renders session and view state.
type ViewsHandler struct {
	deps ViewDependencies
}

// NewViewsHandler creates a new views handler.
func NewViewsHandler(deps ViewDependencies) *ViewsHandler {
	return &ViewsHandler{deps: deps}
}

type keyResponse struct {
	DatasetID string `json:"dataset_id"`
	Year      *int   `json:"year"`
	Month     *int   `json:"month"`
}

// viewResponse never carries the raw error, only the display reason.
type viewResponse struct {
	View   string       `json:"view"`
	Status string       `json:"status"`
	Empty  bool         `json:"empty"`
	Key    *keyResponse `json:"key,omitempty"`
	Result any          `json:"result,omitempty"`
	Reason string       `json:"reason,omitempty"`
}

type stateResponse struct {
	DatasetID     string            `json:"dataset_id"`
	Year          *int              `json:"year"`
	Month         *int              `json:"month"`
	PeriodLabel   string            `json:"period_label"`
	ActiveView    string            `json:"active_view"`
	Datasets      []datasetResponse `json:"datasets"`
	DatasetsError string            `json:"datasets_error,omitempty"`
	Views         []viewResponse    `json:"views"`
}

func toViewResponse(kind model.ViewKind, st service.ViewState) viewResponse {
	resp := viewResponse{
		View:   string(kind),
		Status: string(st.Status),
		Empty:  st.Empty(),
		Reason: st.Reason,
	}
	if st.Status != model.StatusIdle {
		resp.Key = &keyResponse{
			DatasetID: st.Key.DatasetID,
			Year:      st.Key.Filter.YearPtr(),
			Month:     st.Key.Filter.MonthPtr(),
		}
	}
	if st.Status == model.StatusSuccess {
		resp.Result = st.Result
	}
	return resp
}

// HandleState handles GET /state.
func (h *ViewsHandler) HandleState(w http.ResponseWriter, _ *http.Request) {
	snap := h.deps.Snapshot()
	resp := stateResponse{
		DatasetID:   snap.DatasetID,
		Year:        snap.Filter.YearPtr(),
		Month:       snap.Filter.MonthPtr(),
		PeriodLabel: comparison.PeriodLabel(snap.Filter, h.deps.Locale()),
		ActiveView:  string(snap.ActiveView),
		Datasets:    make([]datasetResponse, 0, len(snap.Datasets)),
	}
	if snap.DatasetsError != nil {
		resp.DatasetsError = snap.DatasetsError.Error()
	}
	for _, d := range snap.Datasets {
		resp.Datasets = append(resp.Datasets, toDatasetResponse(d))
	}
	for _, kind := range model.AllViews() {
		resp.Views = append(resp.Views, toViewResponse(kind, snap.Views[kind]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleView handles GET /views/{kind}.
func (h *ViewsHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	kind, err := model.ParseViewKind(mux.Vars(r)["kind"])
	if err != nil {
		writeFailure(w, err)
		return
	}
	st, err := h.deps.ViewState(kind)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toViewResponse(kind, st))
}
