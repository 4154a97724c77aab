package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/annotations"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/models"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/notify"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/status"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/store"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/subscriptions"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/upload"
)

// Store is the slice of the access layer the orchestrator drives.
type Store interface {
	UploadAndProcess(ctx context.Context, up store.Upload, onProgress func(percent int)) (*models.Job, error)
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	GetExtractedText(ctx context.Context, jobID string) (string, error)
	GetDocument(ctx context.Context, jobID string) ([]byte, *models.Job, error)
	GetAnnotations(ctx context.Context, jobID string) ([]models.Annotation, error)
	CreateAnnotation(ctx context.Context, ann models.Annotation) (*models.Annotation, error)
	AnalyzeSentiment(ctx context.Context, jobID, text string) (*models.AnalysisRequest, error)
	CancelJob(ctx context.Context, jobID string) error
	GetUserJobHistory(ctx context.Context, limit int) ([]models.Job, error)
	ApplyAnnotationInsert(jobID string, ann models.Annotation)
	ApplyAnnotationUpdate(jobID string, ann models.Annotation)
	ClearCache()
}

// UIFeed pushes render state to the attached presentation layer.
type UIFeed interface {
	JobUpdate(snap status.Snapshot)
	UploadProgress(fileName string, index, percent int)
	Annotations(jobID string, frags []annotations.Fragment, listHTML, documentHTML string)
	Detail(d annotations.Detail)
	Connection(connected bool)
}

// AnnotationsPayload is the annotation state served for one job.
type AnnotationsPayload struct {
	JobID       string                    `json:"job_id"`
	Annotations []models.Annotation       `json:"annotations"`
	Fragments   []annotations.Fragment    `json:"fragments"`
	HTML        string                    `json:"html"`
	Mode        annotations.HighlightMode `json:"mode"`
}

// TextPayload is the document text served for one job.
type TextPayload struct {
	JobID string `json:"job_id"`
	Text  string `json:"text"`
	HTML  string `json:"html"`
}

// Orchestrator ties the upload queue, the access layer, the change
// subscriptions and the per-job views together. It is the single
// JobEventHandler: every change-feed callback lands here and fans out to the
// tracker, the cache, the views and the UI feed.
type Orchestrator struct {
	store    Store
	subs     *subscriptions.Manager
	queue    *upload.Queue
	ui       UIFeed
	notifier notify.Notifier

	mu          sync.Mutex
	runCtx      context.Context
	trackers    map[string]*status.Tracker
	views       map[string]*annotations.View
	currentJob  string
	defaultMode annotations.HighlightMode
}

func New(st Store, feedSrc subscriptions.Feed, ui UIFeed, notifier notify.Notifier, maxUploadBytes int64) *Orchestrator {
	o := &Orchestrator{
		store:       st,
		ui:          ui,
		notifier:    notifier,
		trackers:    make(map[string]*status.Tracker),
		views:       make(map[string]*annotations.View),
		defaultMode: annotations.ModeSentiment,
	}
	o.subs = subscriptions.NewManager(feedSrc, o)
	o.queue = upload.NewQueue(upload.NewValidator(maxUploadBytes), o.processFile, upload.Callbacks{
		OnProgress: func(f upload.File, index, percent int) {
			o.ui.UploadProgress(f.Name, index, percent)
		},
		OnComplete: func(f upload.File, index int) {
			o.notifier.Notify(notify.Success("Upload complete", f.Name))
		},
		OnError: func(f upload.File, err error) {
			o.notifier.Notify(notify.Error("Upload failed", f.Name+": "+err.Error()))
		},
	})
	return o
}

// Start launches the upload worker. ctx bounds every background flow the
// orchestrator spawns.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	o.runCtx = ctx
	o.mu.Unlock()
	o.queue.Start(ctx)
	slog.Info("[Orchestrator] Started")
}

// Shutdown drops all subscriptions and trackers.
func (o *Orchestrator) Shutdown() {
	o.subs.UnsubscribeAll()

	o.mu.Lock()
	trackers := make([]*status.Tracker, 0, len(o.trackers))
	for _, tr := range o.trackers {
		trackers = append(trackers, tr)
	}
	o.mu.Unlock()

	for _, tr := range trackers {
		tr.Stop()
	}
	o.store.ClearCache()
	slog.Info("[Orchestrator] Shut down")
}

func (o *Orchestrator) ctx() context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.runCtx != nil {
		return o.runCtx
	}
	return context.Background()
}

// Enqueue validates the files and queues the accepted ones. Each rejection
// produces its own notification and verdict; rejected files trigger no
// remote call.
func (o *Orchestrator) Enqueue(files ...upload.File) []error {
	verdicts := o.queue.Enqueue(files...)
	for i, err := range verdicts {
		if err != nil {
			o.notifier.Notify(notify.Error("File rejected", files[i].Name+": "+err.Error()))
		}
	}
	return verdicts
}

// processFile is the queue's processor: upload the blob, register the job,
// then start tracking and subscribe to the job's changes. A subscription
// failure degrades to "no live updates" but does not fail the file.
func (o *Orchestrator) processFile(ctx context.Context, f upload.File, index int, reportProgress func(percent int)) error {
	job, err := o.store.UploadAndProcess(ctx, store.Upload{
		Name:        f.Name,
		ContentType: f.ContentType,
		Data:        f.Data,
		Options:     f.Options,
	}, reportProgress)
	if err != nil {
		return err
	}

	tracker := status.NewTracker(status.Callbacks{
		OnTick: func(snap status.Snapshot) {
			o.ui.JobUpdate(snap)
		},
		OnComplete: func(done models.Job) {
			go o.handleCompletion(done)
		},
		OnError: func(jobID, message string) {
			o.notifier.Notify(notify.Error("Processing failed", message))
		},
	})

	o.mu.Lock()
	o.trackers[job.ID] = tracker
	o.views[job.ID] = annotations.NewView()
	o.views[job.ID].SetMode(o.defaultMode)
	o.currentJob = job.ID
	o.mu.Unlock()

	tracker.StartTracking(ctx, *job)
	o.ui.JobUpdate(tracker.Snapshot())

	if err := o.subs.SubscribeToJob(job.ID); err != nil {
		slog.Warn("[Orchestrator] No live updates for job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()))
		o.notifier.Notify(notify.Warning("Live updates unavailable",
			"the job keeps processing server-side, refresh for results"))
	}
	return nil
}

// handleCompletion runs once per job on the transition into completed:
// fetch the text, hand it to the analysis queue, then load and render the
// job's annotations.
func (o *Orchestrator) handleCompletion(job models.Job) {
	ctx := o.ctx()
	o.notifier.Notify(notify.Success("Processing complete", job.FileName))

	text, err := o.store.GetExtractedText(ctx, job.ID)
	if err != nil {
		o.notifier.Notify(notify.Error("Text unavailable", err.Error()))
		return
	}

	if text != "" {
		// The verdict comes back as annotation rows on the change feed;
		// the request row itself is never polled.
		if _, err := o.store.AnalyzeSentiment(ctx, job.ID, text); err != nil {
			o.notifier.Notify(notify.Error("Analysis request failed", err.Error()))
		}
	}

	anns, err := o.store.GetAnnotations(ctx, job.ID)
	if err != nil {
		o.notifier.Notify(notify.Error("Annotations unavailable", err.Error()))
		return
	}

	view := o.ensureView(job.ID)
	view.SetAnnotations(anns)
	o.ui.Annotations(job.ID, view.Render(), view.RenderHTML(), annotations.RenderDocumentHTML(job))
}

// CancelJob requests cancellation and drops the job's local bookkeeping.
// The cancel is advisory: remote calls already in flight still complete.
func (o *Orchestrator) CancelJob(ctx context.Context, jobID string) error {
	if err := o.store.CancelJob(ctx, jobID); err != nil {
		o.notifier.Notify(notify.Error("Cancellation failed", err.Error()))
		return err
	}

	if err := o.subs.Unsubscribe(jobID); err != nil {
		slog.Warn("[Orchestrator] Failed to drop subscription on cancel",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
	}

	o.mu.Lock()
	tracker := o.trackers[jobID]
	o.mu.Unlock()
	if tracker != nil {
		tracker.ApplyStatus(models.StatusCancelled)
		o.ui.JobUpdate(tracker.Snapshot())
	}

	o.notifier.Notify(notify.Info("Job cancelled", jobID))
	return nil
}

// OnStatusChange implements subscriptions.JobEventHandler.
func (o *Orchestrator) OnStatusChange(jobID string, st models.JobStatus) {
	tracker := o.trackerFor(jobID)
	if tracker == nil {
		return
	}
	tracker.ApplyStatus(st)
}

// OnProgressChange implements subscriptions.JobEventHandler.
func (o *Orchestrator) OnProgressChange(jobID string, progress int) {
	tracker := o.trackerFor(jobID)
	if tracker == nil {
		return
	}
	tracker.ApplyProgress(progress)
}

// OnJobUpdate implements subscriptions.JobEventHandler.
func (o *Orchestrator) OnJobUpdate(jobID string, job models.Job) {
	tracker := o.trackerFor(jobID)
	if tracker == nil {
		return
	}
	tracker.ApplyJob(job)
	o.ui.JobUpdate(tracker.Snapshot())
}

// OnAnnotationAdded implements subscriptions.JobEventHandler.
func (o *Orchestrator) OnAnnotationAdded(jobID string, ann models.Annotation) {
	o.store.ApplyAnnotationInsert(jobID, ann)
	view := o.ensureView(jobID)
	view.Add(ann)
	o.ui.Annotations(jobID, view.Render(), view.RenderHTML(), "")
}

// OnAnnotationModified implements subscriptions.JobEventHandler.
func (o *Orchestrator) OnAnnotationModified(jobID string, ann models.Annotation) {
	o.store.ApplyAnnotationUpdate(jobID, ann)
	view := o.ensureView(jobID)
	view.Update(ann)
	o.ui.Annotations(jobID, view.Render(), view.RenderHTML(), "")
}

// OnConnectionChange implements subscriptions.JobEventHandler.
func (o *Orchestrator) OnConnectionChange(connected bool) {
	o.ui.Connection(connected)
	if connected {
		o.notifier.Notify(notify.Info("Live updates connected", ""))
		return
	}
	o.notifier.Notify(notify.Warning("Live updates interrupted",
		"jobs keep processing server-side"))
}

// SetHighlightMode switches every live view and re-pushes the current job's
// fragments.
func (o *Orchestrator) SetHighlightMode(mode annotations.HighlightMode) error {
	if !annotations.ValidMode(mode) {
		return fmt.Errorf("unknown highlight mode %q", mode)
	}

	o.mu.Lock()
	o.defaultMode = mode
	views := make(map[string]*annotations.View, len(o.views))
	for id, v := range o.views {
		views[id] = v
	}
	current := o.currentJob
	o.mu.Unlock()

	for _, v := range views {
		v.SetMode(mode)
	}
	if v, ok := views[current]; ok {
		o.ui.Annotations(current, v.Render(), v.RenderHTML(), "")
	}
	return nil
}

// SelectAnnotation selects one fragment of the current job and pushes its
// detail panel state.
func (o *Orchestrator) SelectAnnotation(annotationID string) (annotations.Detail, error) {
	o.mu.Lock()
	current := o.currentJob
	view := o.views[current]
	o.mu.Unlock()

	if view == nil {
		return annotations.Detail{}, fmt.Errorf("no job is currently displayed")
	}
	detail, ok := view.Select(annotationID)
	if !ok {
		return annotations.Detail{}, fmt.Errorf("annotation %s not found", annotationID)
	}
	o.ui.Detail(detail)
	return detail, nil
}

// AnnotationsFor serves the annotation state of one job, rendering through
// its view (created on demand for jobs browsed from history).
func (o *Orchestrator) AnnotationsFor(ctx context.Context, jobID string) (AnnotationsPayload, error) {
	anns, err := o.store.GetAnnotations(ctx, jobID)
	if err != nil {
		return AnnotationsPayload{}, err
	}

	view := o.ensureView(jobID)
	view.SetAnnotations(anns)

	return AnnotationsPayload{
		JobID:       jobID,
		Annotations: anns,
		Fragments:   view.Render(),
		HTML:        view.RenderHTML(),
		Mode:        view.Mode(),
	}, nil
}

// TextFor serves the job's text and its document preview markup.
func (o *Orchestrator) TextFor(ctx context.Context, jobID string) (TextPayload, error) {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return TextPayload{}, err
	}
	text, err := o.store.GetExtractedText(ctx, jobID)
	if err != nil {
		return TextPayload{}, err
	}
	return TextPayload{
		JobID: jobID,
		Text:  text,
		HTML:  annotations.RenderDocumentHTML(*job),
	}, nil
}

// Job serves one job row.
func (o *Orchestrator) Job(ctx context.Context, jobID string) (*models.Job, error) {
	return o.store.GetJob(ctx, jobID)
}

// Document serves the originally uploaded bytes.
func (o *Orchestrator) Document(ctx context.Context, jobID string) ([]byte, *models.Job, error) {
	return o.store.GetDocument(ctx, jobID)
}

// History serves the user's job rows, newest first.
func (o *Orchestrator) History(ctx context.Context, limit int) ([]models.Job, error) {
	return o.store.GetUserJobHistory(ctx, limit)
}

// CreateAnnotation stores a user-authored annotation row.
func (o *Orchestrator) CreateAnnotation(ctx context.Context, ann models.Annotation) (*models.Annotation, error) {
	created, err := o.store.CreateAnnotation(ctx, ann)
	if err != nil {
		o.notifier.Notify(notify.Error("Annotation not saved", err.Error()))
		return nil, err
	}
	return created, nil
}

// Snapshot returns the tracked render state for a job.
func (o *Orchestrator) Snapshot(jobID string) (status.Snapshot, bool) {
	tracker := o.trackerFor(jobID)
	if tracker == nil {
		return status.Snapshot{}, false
	}
	return tracker.Snapshot(), true
}

// IsSubscribedToJob reports whether the job has a live change subscription.
func (o *Orchestrator) IsSubscribedToJob(jobID string) bool {
	return o.subs.IsSubscribedToJob(jobID)
}

// CurrentJobID returns the id of the job the views currently follow.
func (o *Orchestrator) CurrentJobID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.currentJob
}

func (o *Orchestrator) trackerFor(jobID string) *status.Tracker {
	o.mu.Lock()
	defer o.mu.Unlock()
	tracker, ok := o.trackers[jobID]
	if !ok {
		slog.Debug("[Orchestrator] No tracker for job",
			slog.String("job_id", jobID))
		return nil
	}
	return tracker
}

func (o *Orchestrator) ensureView(jobID string) *annotations.View {
	o.mu.Lock()
	defer o.mu.Unlock()
	view, ok := o.views[jobID]
	if !ok {
		view = annotations.NewView()
		view.SetMode(o.defaultMode)
		o.views[jobID] = view
	}
	return view
}
