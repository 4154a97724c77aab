package subscriptions

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/clients"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/models"
)

// Feed is the slice of the realtime client the manager drives.
type Feed interface {
	Subscribe(topic string, bindings []clients.ChangeBinding, handler clients.ChangeHandler) error
	Unsubscribe(topic string) error
	OnConnectionChange(fn func(connected bool))
}

// jobState remembers the last status and progress seen for a job so the
// manager can suppress no-change callbacks.
type jobState struct {
	status      models.JobStatus
	progress    int
	hasStatus   bool
	hasProgress bool
}

// Manager owns the per-job change subscriptions. At most one subscription is
// live per job id; subscribing again tears the old one down first. Decoded
// changes are demuxed onto the JobEventHandler.
type Manager struct {
	feed    Feed
	handler JobEventHandler

	mu   sync.Mutex
	jobs map[string]*jobState
}

func NewManager(feed Feed, handler JobEventHandler) *Manager {
	m := &Manager{
		feed:    feed,
		handler: handler,
		jobs:    make(map[string]*jobState),
	}
	feed.OnConnectionChange(handler.OnConnectionChange)
	return m
}

func topicForJob(jobID string) string {
	return "realtime:jobs:" + jobID
}

// SubscribeToJob opens the job's channel with its three streams: updates of
// the job row itself, inserts of its annotation rows, updates of its
// annotation rows. An existing subscription for the same id is replaced,
// previous-value tracking included.
func (m *Manager) SubscribeToJob(jobID string) error {
	m.mu.Lock()
	_, exists := m.jobs[jobID]
	m.mu.Unlock()

	if exists {
		if err := m.Unsubscribe(jobID); err != nil {
			slog.Warn("[Subscriptions] Failed to drop stale subscription",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()))
		}
	}

	bindings := []clients.ChangeBinding{
		{Event: models.ChangeUpdate, Schema: "public", Table: models.TableJobs, Filter: "id=eq." + jobID},
		{Event: models.ChangeInsert, Schema: "public", Table: models.TableAnnotations, Filter: "job_id=eq." + jobID},
		{Event: models.ChangeUpdate, Schema: "public", Table: models.TableAnnotations, Filter: "job_id=eq." + jobID},
	}
	err := m.feed.Subscribe(topicForJob(jobID), bindings, func(ev models.ChangeEvent) {
		m.dispatch(jobID, ev)
	})
	if err != nil {
		return fmt.Errorf("[Subscriptions] failed to subscribe to job %s: %w", jobID, err)
	}

	m.mu.Lock()
	m.jobs[jobID] = &jobState{}
	m.mu.Unlock()

	slog.Info("[Subscriptions] Watching job", slog.String("job_id", jobID))
	return nil
}

// Unsubscribe closes the job's channel and forgets its tracking state.
// Unknown ids are a no-op.
func (m *Manager) Unsubscribe(jobID string) error {
	m.mu.Lock()
	_, ok := m.jobs[jobID]
	delete(m.jobs, jobID)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	if err := m.feed.Unsubscribe(topicForJob(jobID)); err != nil {
		return fmt.Errorf("[Subscriptions] failed to unsubscribe from job %s: %w", jobID, err)
	}
	slog.Info("[Subscriptions] Stopped watching job", slog.String("job_id", jobID))
	return nil
}

// UnsubscribeAll closes every live subscription.
func (m *Manager) UnsubscribeAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.jobs))
	for id := range m.jobs {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Unsubscribe(id); err != nil {
			slog.Warn("[Subscriptions] Failed to unsubscribe",
				slog.String("job_id", id),
				slog.String("error", err.Error()))
		}
	}
}

// IsSubscribedToJob reports whether a subscription is live for the id.
func (m *Manager) IsSubscribedToJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.jobs[jobID]
	return ok
}

func (m *Manager) dispatch(jobID string, ev models.ChangeEvent) {
	switch ev.Table {
	case models.TableJobs:
		m.dispatchJob(jobID, ev)
	case models.TableAnnotations:
		m.dispatchAnnotation(jobID, ev)
	default:
		slog.Debug("[Subscriptions] Change for unhandled table",
			slog.String("table", ev.Table))
	}
}

func (m *Manager) dispatchJob(jobID string, ev models.ChangeEvent) {
	job, err := ev.DecodeJob()
	if err != nil {
		slog.Warn("[Subscriptions] Dropping undecodable job change",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		return
	}

	m.mu.Lock()
	state, ok := m.jobs[jobID]
	if !ok {
		// Late frame after Unsubscribe.
		m.mu.Unlock()
		return
	}
	statusChanged := !state.hasStatus || state.status != job.Status
	progressChanged := !state.hasProgress || state.progress != job.Progress
	state.status = job.Status
	state.progress = job.Progress
	state.hasStatus = true
	state.hasProgress = true
	m.mu.Unlock()

	if statusChanged {
		m.handler.OnStatusChange(jobID, job.Status)
	}
	if progressChanged {
		m.handler.OnProgressChange(jobID, job.Progress)
	}
	m.handler.OnJobUpdate(jobID, job)
}

func (m *Manager) dispatchAnnotation(jobID string, ev models.ChangeEvent) {
	switch ev.Type {
	case models.ChangeInsert, models.ChangeUpdate:
	default:
		slog.Debug("[Subscriptions] Ignoring annotation change",
			slog.String("type", ev.Type))
		return
	}

	ann, err := ev.DecodeAnnotation()
	if err != nil {
		slog.Warn("[Subscriptions] Dropping undecodable annotation change",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		return
	}

	if ev.Type == models.ChangeInsert {
		m.handler.OnAnnotationAdded(jobID, ann)
		return
	}
	m.handler.OnAnnotationModified(jobID, ann)
}
