package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/annotations"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/app"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/clients"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/models"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/status"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/store"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/upload"
)

const MULTIPART_MEMORY = 32 << 20

// Service is the slice of the orchestrator the handlers drive.
type Service interface {
	Enqueue(files ...upload.File) []error
	Job(ctx context.Context, jobID string) (*models.Job, error)
	AnnotationsFor(ctx context.Context, jobID string) (app.AnnotationsPayload, error)
	TextFor(ctx context.Context, jobID string) (app.TextPayload, error)
	Document(ctx context.Context, jobID string) ([]byte, *models.Job, error)
	CancelJob(ctx context.Context, jobID string) error
	History(ctx context.Context, limit int) ([]models.Job, error)
	SetHighlightMode(mode annotations.HighlightMode) error
	SelectAnnotation(annotationID string) (annotations.Detail, error)
	CreateAnnotation(ctx context.Context, ann models.Annotation) (*models.Annotation, error)
	Snapshot(jobID string) (status.Snapshot, bool)
	CurrentJobID() string
}

// Server exposes the local HTTP surface the display layer talks to.
// platformUp may be nil when no health monitor runs.
type Server struct {
	svc            Service
	hub            *Hub
	maxUploadBytes int64
	platformUp     *atomic.Bool
	upgrader       websocket.Upgrader
}

func NewServer(svc Service, hub *Hub, maxUploadBytes int64, platformUp *atomic.Bool) *Server {
	return &Server{
		svc:            svc,
		hub:            hub,
		maxUploadBytes: maxUploadBytes,
		platformUp:     platformUp,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Routes builds the full handler chain: router inside, then CORS, request
// logging and panic recovery wrapped around it so preflight requests are
// answered before route matching.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/documents", s.handleUpload).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{id}", s.handleJob).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}/annotations", s.handleAnnotations).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}/annotations", s.handleCreateAnnotation).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{id}/text", s.handleText).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}/document", s.handleDocument).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}/cancel", s.handleCancel).Methods(http.MethodPost)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/view/highlight", s.handleHighlight).Methods(http.MethodPost)
	api.HandleFunc("/view/select", s.handleSelect).Methods(http.MethodPost)
	r.HandleFunc("/ws", s.handleWebSocket)

	var handler http.Handler = r
	handler = corsMiddleware(handler)
	handler = loggingMiddleware(handler)
	handler = recoveryMiddleware(handler)
	return handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	platformUp := s.platformUp == nil || s.platformUp.Load()
	status := "healthy"
	if !platformUp {
		status = "degraded"
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": status, "platform": platformUp})
}

type uploadResult struct {
	FileName string `json:"file_name"`
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// handleUpload accepts a multipart batch, queues the accepted files and
// answers with one verdict per file. A rejected file never blocks the rest
// of the batch.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(MULTIPART_MEMORY); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		parts = r.MultipartForm.File["file"]
	}
	if len(parts) == 0 {
		respondError(w, http.StatusBadRequest, "no files provided")
		return
	}

	var options map[string]any
	if raw := r.FormValue("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &options); err != nil {
			respondError(w, http.StatusBadRequest, "options is not valid JSON")
			return
		}
	}

	files := make([]upload.File, 0, len(parts))
	for _, header := range parts {
		part, err := header.Open()
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("failed to open %s", header.Filename))
			return
		}
		// Read at most one byte over the limit so oversized files are
		// flagged by validation instead of exhausting memory here.
		data, err := io.ReadAll(io.LimitReader(part, s.maxUploadBytes+1))
		part.Close()
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("failed to read %s", header.Filename))
			return
		}
		files = append(files, upload.File{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
			Options:     options,
		})
	}

	verdicts := s.svc.Enqueue(files...)

	accepted := 0
	results := make([]uploadResult, len(files))
	for i, f := range files {
		results[i] = uploadResult{FileName: f.Name, Accepted: verdicts[i] == nil}
		if verdicts[i] != nil {
			results[i].Error = verdicts[i].Error()
		} else {
			accepted++
		}
	}

	code := http.StatusAccepted
	if accepted == 0 {
		code = http.StatusBadRequest
	}
	respondJSON(w, code, map[string]any{"results": results})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]
	job, err := s.svc.Job(r.Context(), jobID)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	out := map[string]any{"job": job}
	if snap, ok := s.svc.Snapshot(jobID); ok {
		out["snapshot"] = snap
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleAnnotations(w http.ResponseWriter, r *http.Request) {
	payload, err := s.svc.AnnotationsFor(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, payload)
}

func (s *Server) handleCreateAnnotation(w http.ResponseWriter, r *http.Request) {
	var ann models.Annotation
	if err := json.NewDecoder(r.Body).Decode(&ann); err != nil {
		respondError(w, http.StatusBadRequest, "invalid annotation body")
		return
	}
	if ann.Text == "" {
		respondError(w, http.StatusBadRequest, "annotation text is required")
		return
	}
	ann.JobID = mux.Vars(r)["id"]

	created, err := s.svc.CreateAnnotation(r.Context(), ann)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	payload, err := s.svc.TextFor(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, payload)
}

// handleDocument streams back the originally uploaded bytes.
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	data, job, err := s.svc.Document(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	contentType := job.FileType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.FileName))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]
	if err := s.svc.CancelJob(r.Context(), jobID); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"job_id": jobID, "cancelled": true})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	jobs, err := s.svc.History(r.Context(), limit)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode annotations.HighlightMode `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.svc.SetHighlightMode(body.Mode); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"mode": body.Mode})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AnnotationID string `json:"annotation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.AnnotationID == "" {
		respondError(w, http.StatusBadRequest, "annotation_id is required")
		return
	}

	detail, err := s.svc.SelectAnnotation(body.AnnotationID)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

// handleWebSocket attaches a display client to the hub. The read side is
// drained only to observe disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[Web] Failed to upgrade websocket", slog.String("error", err.Error()))
		return
	}

	s.hub.Register(conn)

	// New clients immediately see the job currently on screen.
	if jobID := s.svc.CurrentJobID(); jobID != "" {
		if snap, ok := s.svc.Snapshot(jobID); ok {
			if err := conn.WriteJSON(Envelope{Type: FRAME_JOB_UPDATE, Data: snap}); err != nil {
				slog.Warn("[Web] Failed to send initial snapshot", slog.String("error", err.Error()))
			}
		}
	}

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.hub.Unregister(conn)
				return
			}
		}
	}()
}

// statusFor maps access-layer failures onto response codes: missing rows are
// the caller's 404, platform refusals come back as 502.
func statusFor(err error) int {
	var pe *clients.PlatformError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &pe):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("[Web] Failed to encode response", slog.String("error", err.Error()))
	}
}

func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]string{"error": message})
}
