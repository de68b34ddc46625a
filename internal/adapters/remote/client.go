// Package remote is the HTTP client for the analytics service that owns
// datasets and computes every KPI.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lrgtech/peopleanalytics/internal/domain/faults"
	"github.com/lrgtech/peopleanalytics/internal/domain/model"
	"github.com/lrgtech/peopleanalytics/pkg/logger"
	"github.com/lrgtech/peopleanalytics/pkg/metrics"
)

const (
	// DefaultPrefix is the versioned API root. /health lives outside it.
	DefaultPrefix = "/api/v1"

	requestIDHeader = "X-Request-ID"
	uploadField     = "file"
	maxErrorBody    = 64 << 10
)

// TokenSource supplies the bearer token. An empty token sends no header.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// UploadResult is the service's answer to a successful upload.
type UploadResult struct {
	DatasetID string
	Message   string
	Dataset   model.Dataset
}

// Client talks to the analytics service.
type Client struct {
	baseURL    string
	prefix     string
	httpClient *http.Client
	tokens     TokenSource
	logger     logger.Logger
}

// New constructs a client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		prefix:     DefaultPrefix,
		httpClient: &http.Client{},
		logger:     logger.Get().Named("remote"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health checks the service liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.resolve("/health"), nil)
	if err != nil {
		return err
	}
	return c.do(req, "health", nil)
}

type datasetWire struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Filename string `json:"filename"`
	Rows     int    `json:"rows"`
}

func (d datasetWire) toModel() model.Dataset {
	name := d.Name
	if name == "" {
		name = d.Filename
	}
	return model.Dataset{ID: d.ID, Name: name, RowCount: d.Rows}
}

// ListDatasets returns the datasets in service order.
func (c *Client) ListDatasets(ctx context.Context) ([]model.Dataset, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.api("/datasets"), nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Datasets []datasetWire `json:"datasets"`
	}
	if err := c.do(req, "list_datasets", &out); err != nil {
		return nil, err
	}
	datasets := make([]model.Dataset, 0, len(out.Datasets))
	for _, d := range out.Datasets {
		datasets = append(datasets, d.toModel())
	}
	return datasets, nil
}

// Upload sends a spreadsheet as a multipart form.
func (c *Client) Upload(ctx context.Context, filename string, content io.Reader) (UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(uploadField, filename)
	if err != nil {
		return UploadResult{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return UploadResult{}, fmt.Errorf("copy upload content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("close multipart: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.api("/datasets/upload"), &body)
	if err != nil {
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out struct {
		DatasetID string      `json:"dataset_id"`
		Message   string      `json:"message"`
		Metadata  datasetWire `json:"metadata"`
	}
	if err := c.do(req, "upload_dataset", &out); err != nil {
		return UploadResult{}, err
	}
	if out.DatasetID == "" {
		return UploadResult{}, faults.NewKind("upload_dataset", faults.ErrTransport, "response has no dataset_id")
	}
	ds := out.Metadata.toModel()
	ds.ID = out.DatasetID
	return UploadResult{DatasetID: out.DatasetID, Message: out.Message, Dataset: ds}, nil
}

// DeleteDataset removes a dataset. A missing dataset yields faults.ErrNotFound.
func (c *Client) DeleteDataset(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, c.api("/datasets/"+url.PathEscape(id)), nil)
	if err != nil {
		return err
	}
	return c.do(req, "delete_dataset", nil)
}

// analysisBody sends absent filter fields as null.
type analysisBody struct {
	DatasetID    string `json:"dataset_id"`
	Year         *int   `json:"ano_filtro"`
	Month        *int   `json:"mes_filtro"`
	AnalysisType string `json:"analysis_type"`
}

// riskBody carries no filter fields.
type riskBody struct {
	DatasetID    string `json:"dataset_id"`
	AnalysisType string `json:"analysis_type"`
}

// Analyze requests one analysis and returns the raw results object.
func (c *Client) Analyze(ctx context.Context, r model.AnalysisRequest) (json.RawMessage, error) {
	if !r.Kind.Valid() {
		return nil, faults.Validation("analyze", "unknown analysis kind %q", r.Kind)
	}
	var payload any = analysisBody{
		DatasetID:    r.DatasetID,
		Year:         r.Filter.YearPtr(),
		Month:        r.Filter.MonthPtr(),
		AnalysisType: string(r.Kind),
	}
	if r.Kind == model.ViewRisk {
		payload = riskBody{DatasetID: r.DatasetID, AnalysisType: string(r.Kind)}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.api("/analyses/"+string(r.Kind)), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	op := "analyze_" + string(r.Kind)
	var out struct {
		Results json.RawMessage `json:"results"`
	}
	if err := c.do(req, op, &out); err != nil {
		return nil, err
	}
	if len(out.Results) == 0 || bytes.Equal(out.Results, []byte("null")) {
		return nil, faults.NewKind(op, faults.ErrTransport, "response has no results")
	}
	return out.Results, nil
}

func (c *Client) api(p string) string {
	return c.resolve(c.prefix + p)
}

func (c *Client) resolve(p string) string {
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			// Absence of a token never blocks a request; the server decides.
			c.logger.Warn(ctx, "token unavailable, sending without authorization", logger.Error(err))
		} else if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

// do sends req, maps non-2xx to faults errors and decodes the body into out.
func (c *Client) do(req *http.Request, op string, out any) error {
	ctx := req.Context()
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		metrics.RecordRemoteRequest(op, req.Method, "error", elapsed)
		c.logger.Warn(ctx, "remote request failed",
			logger.String("op", op),
			logger.String("request_id", req.Header.Get(requestIDHeader)),
			logger.Error(err),
		)
		return faults.WrapKind(op, faults.ErrTransport, err)
	}
	defer resp.Body.Close()
	metrics.RecordRemoteRequest(op, req.Method, strconv.Itoa(resp.StatusCode), elapsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := readDetail(resp.Body)
		if detail == "" {
			detail = resp.Status
		}
		c.logger.Debug(ctx, "remote request rejected",
			logger.String("op", op),
			logger.Int("status", resp.StatusCode),
			logger.String("detail", detail),
		)
		return faults.Transport(op, resp.StatusCode, detail)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return faults.WrapKind(op, faults.ErrTransport, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// readDetail extracts a FastAPI style {"detail": ...} message, falling back
// to the raw body.
func readDetail(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(b) == 0 {
		return ""
	}
	var env struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(b, &env) == nil && len(env.Detail) > 0 {
		var s string
		if json.Unmarshal(env.Detail, &s) == nil {
			return s
		}
		return string(env.Detail)
	}
	return strings.TrimSpace(string(b))
}
