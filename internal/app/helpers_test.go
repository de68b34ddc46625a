package service_test

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/lrgtech/peopleanalytics/internal/adapters/remote"
	service "github.com/lrgtech/peopleanalytics/internal/app"
	"github.com/lrgtech/peopleanalytics/internal/domain/model"
)

// fakeRemote is an in-process analytics service. Analyze blocks on a gate
// when one is registered for the request.
type fakeRemote struct {
	mu        sync.Mutex
	datasets  []model.Dataset
	listErr   error
	uploaded  []string
	uploadErr error
	nextID    string
	deleted   []string
	deleteErr error
	healthErr error
	calls     map[model.AnalysisRequest]int
	gates     map[model.AnalysisRequest]chan struct{}
	fail      map[model.ViewKind]error
	payload   map[model.ViewKind]string
}

func newFakeRemote(datasets ...model.Dataset) *fakeRemote {
	return &fakeRemote{
		datasets: datasets,
		nextID:   "d-new",
		calls:    make(map[model.AnalysisRequest]int),
		gates:    make(map[model.AnalysisRequest]chan struct{}),
		fail:     make(map[model.ViewKind]error),
		payload:  make(map[model.ViewKind]string),
	}
}

func (f *fakeRemote) ListDatasets(context.Context) ([]model.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.Dataset, len(f.datasets))
	copy(out, f.datasets)
	return out, nil
}

func (f *fakeRemote) Upload(_ context.Context, filename string, content io.Reader) (remote.UploadResult, error) {
	if _, err := io.Copy(io.Discard, content); err != nil {
		return remote.UploadResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = append(f.uploaded, filename)
	if f.uploadErr != nil {
		return remote.UploadResult{}, f.uploadErr
	}
	ds := model.Dataset{ID: f.nextID, Name: filename, RowCount: 10}
	f.datasets = append(f.datasets, ds)
	return remote.UploadResult{DatasetID: ds.ID, Message: "ok", Dataset: ds}, nil
}

func (f *fakeRemote) DeleteDataset(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	kept := f.datasets[:0]
	for _, d := range f.datasets {
		if d.ID != id {
			kept = append(kept, d)
		}
	}
	f.datasets = kept
	return nil
}

func (f *fakeRemote) Health(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthErr
}

func (f *fakeRemote) Analyze(ctx context.Context, req model.AnalysisRequest) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls[req]++
	gate := f.gates[req]
	err := f.fail[req.Kind]
	body, ok := f.payload[req.Kind]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		body = `{}`
	}
	return json.RawMessage(body), nil
}

func (f *fakeRemote) hold(req model.AnalysisRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gates[req] = make(chan struct{})
}

func (f *fakeRemote) release(req model.AnalysisRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gate, ok := f.gates[req]; ok {
		close(gate)
		delete(f.gates, req)
	}
}

func (f *fakeRemote) releaseAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for req, gate := range f.gates {
		close(gate)
		delete(f.gates, req)
	}
}

func (f *fakeRemote) callCount(req model.AnalysisRequest) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[req]
}

func (f *fakeRemote) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeRemote) uploads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploaded...)
}

func (f *fakeRemote) set(fn func(*fakeRemote)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type transition struct {
	kind  model.ViewKind
	state service.ViewState
}

// recorder collects every view transition in order.
type recorder struct {
	mu     sync.Mutex
	events []transition
}

func (r *recorder) listen(kind model.ViewKind, st service.ViewState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, transition{kind: kind, state: st})
}

func (r *recorder) forView(kind model.ViewKind) []service.ViewState {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []service.ViewState
	for _, e := range r.events {
		if e.kind == kind {
			out = append(out, e.state)
		}
	}
	return out
}

func (r *recorder) loadings(key model.AnalysisRequest) int {
	n := 0
	for _, st := range r.forView(key.Kind) {
		if st.Status == model.StatusLoading && st.Key == key {
			n++
		}
	}
	return n
}

// eventually polls cond until it holds or two seconds pass.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func waitStatus(s *service.Session, kind model.ViewKind, status model.FetchStatus) service.ViewState {
	var st service.ViewState
	eventually(func() bool {
		st, _ = s.ViewState(kind)
		return st.Status == status
	})
	return st
}

func intPtr(v int) *int { return &v }

func key(dataset string, kind model.ViewKind, year, month *int) model.AnalysisRequest {
	return model.AnalysisRequest{DatasetID: dataset, Filter: model.NewFilter(year, month), Kind: kind}
}

func buildWorkbook(sheet string, rows [][]any) []byte {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if _, err := f.NewSheet(sheet); err != nil {
		panic(err)
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			panic(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		panic(err)
	}
	return buf.Bytes()
}

const overviewPayload = `{
	"basic_kpis": {"total_ativos": 120, "qtd_feminino": 70, "pct_feminino": 58.3,
		"qtd_masculino": 50, "pct_masculino": 41.7, "qtd_lideranca": 12, "pct_lideranca": 10.0},
	"turnover": {"turnover_total": 12.5, "turnover_vol": 8.0, "turnover_inv": 4.5,
		"ativos": 118.6, "desligados": 3.25, "voluntarios": 2.0, "involuntarios": 1.25, "meses_considerados": 1},
	"turnover_total": {"turnover_total": 10.0, "turnover_vol": 6.5, "turnover_inv": 3.5,
		"ativos": 110.2, "desligados": 2.75, "voluntarios": 1.5, "involuntarios": 1.25, "meses_considerados": 24},
	"contract_types": [{"Tipo": "CLT", "Quantidade": 100, "Percentual (%)": 83.3},
		{"Tipo": "PJ", "Quantidade": 20, "Percentual (%)": 16.7}],
	"monthly_dismissals": {"desligamentos_medio_mes": 2.75, "total_desligados": 66, "meses_com_dados": 24},
	"tenure": {"tenure_total": 30.4, "tenure_vol": 26.1, "tenure_inv": 41.0}
}`
