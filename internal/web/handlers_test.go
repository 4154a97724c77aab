package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/annotations"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/app"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/clients"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/models"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/status"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/store"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/upload"
)

type fakeService struct {
	enqueueFn       func(files ...upload.File) []error
	jobFn           func(jobID string) (*models.Job, error)
	historyFn       func(limit int) ([]models.Job, error)
	highlightFn     func(mode annotations.HighlightMode) error
	selectFn        func(id string) (annotations.Detail, error)
	createFn        func(ann models.Annotation) (*models.Annotation, error)
	cancelled       []string
	currentJob      string
	currentSnapshot *status.Snapshot
}

func (f *fakeService) Enqueue(files ...upload.File) []error {
	if f.enqueueFn != nil {
		return f.enqueueFn(files...)
	}
	return make([]error, len(files))
}

func (f *fakeService) Job(ctx context.Context, jobID string) (*models.Job, error) {
	if f.jobFn != nil {
		return f.jobFn(jobID)
	}
	return &models.Job{ID: jobID, FileName: "doc.pdf", FileType: "application/pdf", Status: models.StatusProcessing}, nil
}

func (f *fakeService) AnnotationsFor(ctx context.Context, jobID string) (app.AnnotationsPayload, error) {
	return app.AnnotationsPayload{JobID: jobID, Mode: annotations.ModeSentiment}, nil
}

func (f *fakeService) TextFor(ctx context.Context, jobID string) (app.TextPayload, error) {
	return app.TextPayload{JobID: jobID, Text: "hello", HTML: "<pre>hello</pre>"}, nil
}

func (f *fakeService) Document(ctx context.Context, jobID string) ([]byte, *models.Job, error) {
	job, err := f.Job(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	return []byte("%PDF-raw"), job, nil
}

func (f *fakeService) CancelJob(ctx context.Context, jobID string) error {
	f.cancelled = append(f.cancelled, jobID)
	return nil
}

func (f *fakeService) History(ctx context.Context, limit int) ([]models.Job, error) {
	if f.historyFn != nil {
		return f.historyFn(limit)
	}
	return []models.Job{}, nil
}

func (f *fakeService) SetHighlightMode(mode annotations.HighlightMode) error {
	if f.highlightFn != nil {
		return f.highlightFn(mode)
	}
	if !annotations.ValidMode(mode) {
		return fmt.Errorf("unknown highlight mode %q", mode)
	}
	return nil
}

func (f *fakeService) SelectAnnotation(id string) (annotations.Detail, error) {
	if f.selectFn != nil {
		return f.selectFn(id)
	}
	return annotations.Detail{ID: id}, nil
}

func (f *fakeService) CreateAnnotation(ctx context.Context, ann models.Annotation) (*models.Annotation, error) {
	if f.createFn != nil {
		return f.createFn(ann)
	}
	ann.ID = "created"
	return &ann, nil
}

func (f *fakeService) Snapshot(jobID string) (status.Snapshot, bool) {
	if f.currentSnapshot != nil && f.currentJob == jobID {
		return *f.currentSnapshot, true
	}
	return status.Snapshot{}, false
}

func (f *fakeService) CurrentJobID() string { return f.currentJob }

func newTestServer(t *testing.T, svc Service) *httptest.Server {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub.Start(ctx)

	srv := httptest.NewServer(NewServer(svc, hub, 50*1024*1024, nil).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func multipartBody(t *testing.T, options string, names ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range names {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		part.Write([]byte("content of " + name))
	}
	if options != "" {
		mw.WriteField("options", options)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func decodeBody(t *testing.T, res *http.Response, out any) {
	t.Helper()
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeService{})

	res, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("status = %d", res.StatusCode)
	}
	var body map[string]any
	decodeBody(t, res, &body)
	if body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
}

func TestHealthReportsDegradedPlatform(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub.Start(ctx)

	platformUp := &atomic.Bool{}
	srv := httptest.NewServer(NewServer(&fakeService{}, hub, 50*1024*1024, platformUp).Routes())
	t.Cleanup(srv.Close)

	res, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	var body map[string]any
	decodeBody(t, res, &body)
	if body["status"] != "degraded" || body["platform"] != false {
		t.Errorf("body = %v", body)
	}

	platformUp.Store(true)
	res, err = http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	body = nil
	decodeBody(t, res, &body)
	if body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
}

func TestUploadBatchVerdicts(t *testing.T) {
	svc := &fakeService{
		enqueueFn: func(files ...upload.File) []error {
			verdicts := make([]error, len(files))
			for i, f := range files {
				if strings.HasSuffix(f.Name, ".exe") {
					verdicts[i] = upload.ErrUnsupportedType
				}
			}
			return verdicts
		},
	}
	srv := newTestServer(t, svc)

	body, contentType := multipartBody(t, "", "report.txt", "virus.exe")
	res, err := http.Post(srv.URL+"/api/v1/documents", contentType, body)
	if err != nil {
		t.Fatalf("POST documents: %v", err)
	}
	if res.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d", res.StatusCode)
	}

	var out struct {
		Results []uploadResult `json:"results"`
	}
	decodeBody(t, res, &out)
	if len(out.Results) != 2 {
		t.Fatalf("results = %+v", out.Results)
	}
	if !out.Results[0].Accepted || out.Results[0].Error != "" {
		t.Errorf("first verdict = %+v", out.Results[0])
	}
	if out.Results[1].Accepted || out.Results[1].Error == "" {
		t.Errorf("second verdict = %+v", out.Results[1])
	}
}

func TestUploadAllRejectedIsBadRequest(t *testing.T) {
	svc := &fakeService{
		enqueueFn: func(files ...upload.File) []error {
			return []error{upload.ErrUnsupportedType}
		},
	}
	srv := newTestServer(t, svc)

	body, contentType := multipartBody(t, "", "virus.exe")
	res, err := http.Post(srv.URL+"/api/v1/documents", contentType, body)
	if err != nil {
		t.Fatalf("POST documents: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", res.StatusCode)
	}
}

func TestUploadWithoutFiles(t *testing.T) {
	srv := newTestServer(t, &fakeService{})

	body, contentType := multipartBody(t, `{"language":"en"}`)
	res, err := http.Post(srv.URL+"/api/v1/documents", contentType, body)
	if err != nil {
		t.Fatalf("POST documents: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", res.StatusCode)
	}
}

func TestUploadPassesOptionsToEveryFile(t *testing.T) {
	var got []upload.File
	svc := &fakeService{
		enqueueFn: func(files ...upload.File) []error {
			got = files
			return make([]error, len(files))
		},
	}
	srv := newTestServer(t, svc)

	body, contentType := multipartBody(t, `{"language":"de","detail":true}`, "a.txt", "b.txt")
	res, err := http.Post(srv.URL+"/api/v1/documents", contentType, body)
	if err != nil {
		t.Fatalf("POST documents: %v", err)
	}
	res.Body.Close()

	if len(got) != 2 {
		t.Fatalf("enqueued files = %d", len(got))
	}
	for _, f := range got {
		if f.Options["language"] != "de" {
			t.Errorf("options for %s = %v", f.Name, f.Options)
		}
	}
}

func TestUploadRejectsBadOptions(t *testing.T) {
	srv := newTestServer(t, &fakeService{})

	body, contentType := multipartBody(t, "{not json", "a.txt")
	res, err := http.Post(srv.URL+"/api/v1/documents", contentType, body)
	if err != nil {
		t.Fatalf("POST documents: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", res.StatusCode)
	}
}

func TestJobNotFoundMapsTo404(t *testing.T) {
	svc := &fakeService{
		jobFn: func(jobID string) (*models.Job, error) {
			return nil, fmt.Errorf("job %s: %w", jobID, store.ErrNotFound)
		},
	}
	srv := newTestServer(t, svc)

	res, err := http.Get(srv.URL + "/api/v1/jobs/missing")
	if err != nil {
		t.Fatalf("GET job: %v", err)
	}
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", res.StatusCode)
	}
	var body map[string]string
	decodeBody(t, res, &body)
	if body["error"] == "" {
		t.Error("error body missing")
	}
}

func TestPlatformFailureMapsTo502(t *testing.T) {
	svc := &fakeService{
		jobFn: func(jobID string) (*models.Job, error) {
			return nil, fmt.Errorf("fetch failed: %w", &clients.PlatformError{Status: 500, Message: "boom"})
		},
	}
	srv := newTestServer(t, svc)

	res, err := http.Get(srv.URL + "/api/v1/jobs/j1")
	if err != nil {
		t.Fatalf("GET job: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d", res.StatusCode)
	}
}

func TestJobIncludesTrackedSnapshot(t *testing.T) {
	svc := &fakeService{
		currentJob:      "j1",
		currentSnapshot: &status.Snapshot{JobID: "j1", Status: models.StatusProcessing, Progress: 55},
	}
	srv := newTestServer(t, svc)

	res, err := http.Get(srv.URL + "/api/v1/jobs/j1")
	if err != nil {
		t.Fatalf("GET job: %v", err)
	}
	var out struct {
		Job      models.Job       `json:"job"`
		Snapshot *status.Snapshot `json:"snapshot"`
	}
	decodeBody(t, res, &out)
	if out.Snapshot == nil || out.Snapshot.Progress != 55 {
		t.Errorf("snapshot = %+v", out.Snapshot)
	}
}

func TestCancelJob(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(t, svc)

	res, err := http.Post(srv.URL+"/api/v1/jobs/j1/cancel", "application/json", nil)
	if err != nil {
		t.Fatalf("POST cancel: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("status = %d", res.StatusCode)
	}
	var body map[string]any
	decodeBody(t, res, &body)
	if body["cancelled"] != true {
		t.Errorf("body = %v", body)
	}
	if len(svc.cancelled) != 1 || svc.cancelled[0] != "j1" {
		t.Errorf("cancelled = %v", svc.cancelled)
	}
}

func TestHistoryLimitParsing(t *testing.T) {
	var gotLimit int
	svc := &fakeService{
		historyFn: func(limit int) ([]models.Job, error) {
			gotLimit = limit
			return []models.Job{{ID: "j1"}}, nil
		},
	}
	srv := newTestServer(t, svc)

	res, err := http.Get(srv.URL + "/api/v1/history?limit=5")
	if err != nil {
		t.Fatalf("GET history: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK || gotLimit != 5 {
		t.Errorf("status = %d, limit = %d", res.StatusCode, gotLimit)
	}

	for _, bad := range []string{"x", "-1"} {
		res, err := http.Get(srv.URL + "/api/v1/history?limit=" + bad)
		if err != nil {
			t.Fatalf("GET history: %v", err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusBadRequest {
			t.Errorf("limit=%s status = %d", bad, res.StatusCode)
		}
	}
}

func TestHighlightMode(t *testing.T) {
	srv := newTestServer(t, &fakeService{})

	res, err := http.Post(srv.URL+"/api/v1/view/highlight", "application/json",
		strings.NewReader(`{"mode":"emotion"}`))
	if err != nil {
		t.Fatalf("POST highlight: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Errorf("status = %d", res.StatusCode)
	}

	res, err = http.Post(srv.URL+"/api/v1/view/highlight", "application/json",
		strings.NewReader(`{"mode":"sparkle"}`))
	if err != nil {
		t.Fatalf("POST highlight: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid mode status = %d", res.StatusCode)
	}
}

func TestSelectAnnotation(t *testing.T) {
	svc := &fakeService{
		selectFn: func(id string) (annotations.Detail, error) {
			if id != "a1" {
				return annotations.Detail{}, fmt.Errorf("annotation %s not found", id)
			}
			return annotations.Detail{ID: id, ScorePercent: 80, ScoreSign: "positive"}, nil
		},
	}
	srv := newTestServer(t, svc)

	res, err := http.Post(srv.URL+"/api/v1/view/select", "application/json",
		strings.NewReader(`{"annotation_id":"a1"}`))
	if err != nil {
		t.Fatalf("POST select: %v", err)
	}
	var detail annotations.Detail
	decodeBody(t, res, &detail)
	if detail.ScorePercent != 80 {
		t.Errorf("detail = %+v", detail)
	}

	res, err = http.Post(srv.URL+"/api/v1/view/select", "application/json",
		strings.NewReader(`{"annotation_id":"ghost"}`))
	if err != nil {
		t.Fatalf("POST select: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("unknown id status = %d", res.StatusCode)
	}

	res, err = http.Post(srv.URL+"/api/v1/view/select", "application/json",
		strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST select: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("empty id status = %d", res.StatusCode)
	}
}

func TestCreateAnnotationUsesPathJobID(t *testing.T) {
	var got models.Annotation
	svc := &fakeService{
		createFn: func(ann models.Annotation) (*models.Annotation, error) {
			got = ann
			ann.ID = "new"
			return &ann, nil
		},
	}
	srv := newTestServer(t, svc)

	res, err := http.Post(srv.URL+"/api/v1/jobs/j9/annotations", "application/json",
		strings.NewReader(`{"text":"note","position":3,"job_id":"spoofed"}`))
	if err != nil {
		t.Fatalf("POST annotation: %v", err)
	}
	if res.StatusCode != http.StatusCreated {
		t.Errorf("status = %d", res.StatusCode)
	}
	var created models.Annotation
	decodeBody(t, res, &created)
	if created.ID != "new" {
		t.Errorf("created = %+v", created)
	}
	if got.JobID != "j9" {
		t.Errorf("job id = %q, want path value", got.JobID)
	}

	res, err = http.Post(srv.URL+"/api/v1/jobs/j9/annotations", "application/json",
		strings.NewReader(`{"position":3}`))
	if err != nil {
		t.Fatalf("POST annotation: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("missing text status = %d", res.StatusCode)
	}
}

func TestDocumentDownloadHeaders(t *testing.T) {
	srv := newTestServer(t, &fakeService{})

	res, err := http.Get(srv.URL + "/api/v1/jobs/j1/document")
	if err != nil {
		t.Fatalf("GET document: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Errorf("status = %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type = %q", ct)
	}
	if cd := res.Header.Get("Content-Disposition"); !strings.Contains(cd, "doc.pdf") {
		t.Errorf("content disposition = %q", cd)
	}
}

func TestTextEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeService{})

	res, err := http.Get(srv.URL + "/api/v1/jobs/j1/text")
	if err != nil {
		t.Fatalf("GET text: %v", err)
	}
	var payload app.TextPayload
	decodeBody(t, res, &payload)
	if payload.Text != "hello" || payload.HTML == "" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &fakeService{})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/documents", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Errorf("status = %d", res.StatusCode)
	}
	if origin := res.Header.Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("allow origin = %q", origin)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	svc := &fakeService{
		historyFn: func(limit int) ([]models.Job, error) {
			panic("boom")
		},
	}
	srv := newTestServer(t, svc)

	res, err := http.Get(srv.URL + "/api/v1/history")
	if err != nil {
		t.Fatalf("GET history: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d", res.StatusCode)
	}
}
