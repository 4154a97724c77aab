package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/clients"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/models"
)

// ErrNotFound is returned when a row lookup matches nothing. The platform
// answers such selects with an empty set, not an error status.
var ErrNotFound = errors.New("not found")

// RowClient is the slice of the REST client the store uses.
type RowClient interface {
	Insert(ctx context.Context, table string, row any, out any) error
	Update(ctx context.Context, table string, patch any, out any, filters ...clients.Filter) error
	Select(ctx context.Context, table string, out any, q clients.Query) error
}

// BlobClient is the slice of the storage client the store uses.
type BlobClient interface {
	Upload(ctx context.Context, key string, data []byte, contentType string, onProgress func(percent int)) error
	Download(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
}

// Upload is one document handed to UploadAndProcess.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
	Options     map[string]any
}

// JobStore is the platform access layer: every job row, annotation row and
// stored blob goes through it. It also owns the per-job annotation cache,
// which is kept fresh by change-feed deltas rather than by expiry.
type JobStore struct {
	rows   RowClient
	blobs  BlobClient
	userID string

	mu          sync.RWMutex
	annotations map[string][]models.Annotation
}

func NewJobStore(rows RowClient, blobs BlobClient, userID string) *JobStore {
	return &JobStore{
		rows:        rows,
		blobs:       blobs,
		userID:      userID,
		annotations: make(map[string][]models.Annotation),
	}
}

// UploadAndProcess stores the document bytes, then registers the processing
// job row that the backend workers pick up. When the row insert fails the
// uploaded blob is removed again so storage holds no orphans.
func (s *JobStore) UploadAndProcess(ctx context.Context, up Upload, onProgress func(percent int)) (*models.Job, error) {
	// Timestamp-prefixed so objects list in upload order; the uuid makes the
	// key unique even for same-named files landing in the same millisecond.
	objectKey := fmt.Sprintf("%s/%d_%s_%s",
		s.userID, time.Now().UnixMilli(), uuid.New().String(), path.Base(up.Name))

	if err := s.blobs.Upload(ctx, objectKey, up.Data, up.ContentType, onProgress); err != nil {
		return nil, fmt.Errorf("[JobStore] upload of %s failed: %w", up.Name, err)
	}

	row := map[string]any{
		"user_id":   s.userID,
		"file_path": objectKey,
		"file_name": up.Name,
		"file_size": len(up.Data),
		"file_type": up.ContentType,
		"status":    models.StatusPending,
		"progress":  0,
	}
	if len(up.Options) > 0 {
		row["options"] = up.Options
	}

	var job models.Job
	if err := s.rows.Insert(ctx, models.TableJobs, row, &job); err != nil {
		if rmErr := s.blobs.Remove(ctx, objectKey); rmErr != nil {
			slog.Warn("[JobStore] Failed to remove blob after job insert failure",
				slog.String("key", objectKey),
				slog.String("error", rmErr.Error()))
		}
		return nil, fmt.Errorf("[JobStore] job registration for %s failed: %w", up.Name, err)
	}

	slog.Info("[JobStore] Document uploaded and job registered",
		slog.String("job_id", job.ID),
		slog.String("file", up.Name))
	return &job, nil
}

// GetJob fetches one job row by id.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	var jobs []models.Job
	err := s.rows.Select(ctx, models.TableJobs, &jobs, clients.Query{
		Filters: []clients.Filter{clients.Eq("id", jobID)},
		Limit:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("[JobStore] failed to fetch job %s: %w", jobID, err)
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("[JobStore] job %s: %w", jobID, ErrNotFound)
	}
	return &jobs[0], nil
}

// GetExtractedText returns the text the processing pipeline produced for the
// job: the extracted_text column when non-empty, else markdown_output, else
// the empty string. A job with no text yet is not an error.
func (s *JobStore) GetExtractedText(ctx context.Context, jobID string) (string, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.ExtractedText != "" {
		return job.ExtractedText, nil
	}
	if job.MarkdownOutput != "" {
		slog.Debug("[JobStore] Serving markdown output as text",
			slog.String("job_id", jobID))
		return job.MarkdownOutput, nil
	}
	return "", nil
}

// GetDocument returns the originally uploaded bytes together with the job
// row describing them.
func (s *JobStore) GetDocument(ctx context.Context, jobID string) ([]byte, *models.Job, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.Download(ctx, job.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("[JobStore] download for job %s failed: %w", jobID, err)
	}
	return data, job, nil
}

// GetAnnotations returns the job's annotations ordered by text position.
// Results are cached; the cache is maintained by Apply* deltas from the
// change feed and invalidated on local writes.
func (s *JobStore) GetAnnotations(ctx context.Context, jobID string) ([]models.Annotation, error) {
	s.mu.RLock()
	cached, ok := s.annotations[jobID]
	s.mu.RUnlock()
	if ok {
		return cloneAnnotations(cached), nil
	}

	var anns []models.Annotation
	err := s.rows.Select(ctx, models.TableAnnotations, &anns, clients.Query{
		Filters: []clients.Filter{clients.Eq("job_id", jobID)},
		OrderBy: "position",
	})
	if err != nil {
		return nil, fmt.Errorf("[JobStore] failed to fetch annotations for job %s: %w", jobID, err)
	}

	s.mu.Lock()
	s.annotations[jobID] = anns
	s.mu.Unlock()
	return cloneAnnotations(anns), nil
}

// CreateAnnotation inserts a user-authored annotation row. The job's cache
// entry is dropped; the authoritative row comes back through the change feed
// or the next read.
func (s *JobStore) CreateAnnotation(ctx context.Context, ann models.Annotation) (*models.Annotation, error) {
	row := map[string]any{
		"job_id":          ann.JobID,
		"text":            ann.Text,
		"position":        ann.Position,
		"sentiment_score": ann.SentimentScore,
		"emotion":         ann.Emotion,
	}
	if len(ann.Metadata) > 0 {
		row["metadata"] = ann.Metadata
	}

	var created models.Annotation
	if err := s.rows.Insert(ctx, models.TableAnnotations, row, &created); err != nil {
		return nil, fmt.Errorf("[JobStore] failed to create annotation for job %s: %w", ann.JobID, err)
	}

	s.mu.Lock()
	delete(s.annotations, ann.JobID)
	s.mu.Unlock()
	return &created, nil
}

// AnalyzeSentiment enqueues a standalone analysis request for the backend
// and returns the created request row. Nothing here waits for the verdict;
// results only surface as annotation rows on the change feed.
func (s *JobStore) AnalyzeSentiment(ctx context.Context, jobID, text string) (*models.AnalysisRequest, error) {
	row := map[string]any{
		"job_id": jobID,
		"text":   text,
		"status": models.StatusPending,
	}
	var created models.AnalysisRequest
	if err := s.rows.Insert(ctx, models.TableAnalysisRequests, row, &created); err != nil {
		return nil, fmt.Errorf("[JobStore] failed to enqueue analysis for job %s: %w", jobID, err)
	}
	slog.Info("[JobStore] Analysis request enqueued",
		slog.String("job_id", jobID),
		slog.Int("text_length", len(text)))
	return &created, nil
}

// CancelJob marks the job cancelled. The status change comes back through
// the change feed like any other transition.
func (s *JobStore) CancelJob(ctx context.Context, jobID string) error {
	patch := map[string]any{"status": models.StatusCancelled}
	if err := s.rows.Update(ctx, models.TableJobs, patch, nil, clients.Eq("id", jobID)); err != nil {
		return fmt.Errorf("[JobStore] failed to cancel job %s: %w", jobID, err)
	}
	slog.Info("[JobStore] Job cancelled", slog.String("job_id", jobID))
	return nil
}

// GetUserJobHistory lists the user's jobs, newest first.
func (s *JobStore) GetUserJobHistory(ctx context.Context, limit int) ([]models.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	var jobs []models.Job
	err := s.rows.Select(ctx, models.TableJobs, &jobs, clients.Query{
		Filters: []clients.Filter{clients.Eq("user_id", s.userID)},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("[JobStore] failed to fetch job history: %w", err)
	}
	return jobs, nil
}

// ApplyAnnotationInsert folds a change-feed INSERT into the job's cache
// entry, keeping position order. Jobs without a cache entry are left alone;
// their next read fetches the full set anyway.
func (s *JobStore) ApplyAnnotationInsert(jobID string, ann models.Annotation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached, ok := s.annotations[jobID]
	if !ok {
		return
	}
	for _, existing := range cached {
		if existing.ID == ann.ID {
			return
		}
	}
	cached = append(cached, ann)
	sort.SliceStable(cached, func(i, j int) bool { return cached[i].Position < cached[j].Position })
	s.annotations[jobID] = cached
}

// ApplyAnnotationUpdate folds a change-feed UPDATE into the job's cache
// entry, matching on annotation id.
func (s *JobStore) ApplyAnnotationUpdate(jobID string, ann models.Annotation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached, ok := s.annotations[jobID]
	if !ok {
		return
	}
	for i, existing := range cached {
		if existing.ID == ann.ID {
			cached[i] = ann
			sort.SliceStable(cached, func(a, b int) bool { return cached[a].Position < cached[b].Position })
			return
		}
	}
}

// InvalidateJob drops one job's annotation cache entry.
func (s *JobStore) InvalidateJob(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.annotations, jobID)
}

// ClearCache drops every cached annotation set.
func (s *JobStore) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.annotations = make(map[string][]models.Annotation)
}

func cloneAnnotations(anns []models.Annotation) []models.Annotation {
	out := make([]models.Annotation, len(anns))
	copy(out, anns)
	return out
}
