package status

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/models"
)

const TICK_INTERVAL = time.Second

// Snapshot is the render state of one tracked job at a point in time.
type Snapshot struct {
	JobID     string           `json:"job_id"`
	FileName  string           `json:"file_name"`
	Status    models.JobStatus `json:"status"`
	Progress  int              `json:"progress"`
	ElapsedMS int64            `json:"elapsed_ms"`
	Spinner   bool             `json:"spinner"`
	CanCancel bool             `json:"can_cancel"`
	Error     string           `json:"error,omitempty"`
}

// Callbacks are the tracker's outputs. OnTick fires once per second while
// the job is live so the elapsed clock stays fresh; OnComplete fires exactly
// once when the job enters completed; OnError fires on failed or error.
type Callbacks struct {
	OnTick     func(Snapshot)
	OnComplete func(job models.Job)
	OnError    func(jobID, message string)
}

// Tracker follows one job from registration to its terminal state. Status
// and progress arrive through the Apply methods; the elapsed clock runs on
// its own ticker and is never reset within a tracking session.
type Tracker struct {
	cb       Callbacks
	interval time.Duration

	mu               sync.Mutex
	job              models.Job
	startedAt        time.Time
	stoppedAt        time.Time
	tracking         bool
	terminalNotified bool
	cancel           context.CancelFunc
	done             chan struct{}
}

func NewTracker(cb Callbacks) *Tracker {
	return &Tracker{cb: cb, interval: TICK_INTERVAL}
}

// StartTracking adopts the job row and starts the elapsed ticker. Calling it
// again for a running session is ignored. A job that is already terminal is
// handled immediately and gets no ticker.
func (t *Tracker) StartTracking(ctx context.Context, job models.Job) {
	t.mu.Lock()
	if t.tracking {
		t.mu.Unlock()
		slog.Warn("[StatusTracker] Tracking already started",
			slog.String("job_id", job.ID))
		return
	}
	t.job = job
	t.startedAt = time.Now()
	t.tracking = true

	if job.Status.Terminal() {
		t.stoppedAt = t.startedAt
		t.mu.Unlock()
		t.handleTerminal(job.Status)
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	done := t.done
	t.mu.Unlock()

	go t.run(runCtx, done)
}

func (t *Tracker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if t.cb.OnTick != nil {
				t.cb.OnTick(t.Snapshot())
			}
		}
	}
}

// ApplyStatus records a status reported by the change feed.
func (t *Tracker) ApplyStatus(status models.JobStatus) {
	t.mu.Lock()
	t.job.Status = status
	t.mu.Unlock()

	if status.Terminal() {
		t.handleTerminal(status)
	}
}

// ApplyProgress records a progress percentage reported by the change feed.
func (t *Tracker) ApplyProgress(progress int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.job.Progress = progress
}

// ApplyJob adopts a full job row from the change feed. The elapsed clock
// keeps its original start.
func (t *Tracker) ApplyJob(job models.Job) {
	t.mu.Lock()
	t.job = job
	t.mu.Unlock()

	if job.Status.Terminal() {
		t.handleTerminal(job.Status)
	}
}

// handleTerminal stops the clock and fires the matching callback. Each
// tracking session reports its terminal state once; repeat frames for the
// same terminal job only refresh the stored row.
func (t *Tracker) handleTerminal(status models.JobStatus) {
	t.mu.Lock()
	t.stopTickerLocked()

	if t.terminalNotified {
		t.mu.Unlock()
		return
	}
	t.terminalNotified = true

	var fire func()
	switch {
	case status == models.StatusCompleted:
		job := t.job
		if t.cb.OnComplete != nil {
			fire = func() { t.cb.OnComplete(job) }
		}
	case status.Failed():
		jobID := t.job.ID
		message := t.job.ErrorMessage
		if message == "" {
			message = "processing failed"
		}
		if t.cb.OnError != nil {
			fire = func() { t.cb.OnError(jobID, message) }
		}
	}
	t.mu.Unlock()

	if fire != nil {
		fire()
	}
}

// stopTickerLocked freezes the elapsed clock and stops the run goroutine.
// Caller holds t.mu.
func (t *Tracker) stopTickerLocked() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	if t.stoppedAt.IsZero() {
		t.stoppedAt = time.Now()
	}
}

// Stop ends the tracking session without a terminal status, e.g. when the
// job's subscription is dropped.
func (t *Tracker) Stop() {
	t.mu.Lock()
	t.stopTickerLocked()
	done := t.done
	t.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Snapshot returns the current render state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	end := t.stoppedAt
	if end.IsZero() {
		end = time.Now()
	}
	elapsed := int64(0)
	if t.tracking {
		elapsed = end.Sub(t.startedAt).Milliseconds()
	}

	snap := Snapshot{
		JobID:     t.job.ID,
		FileName:  t.job.FileName,
		Status:    t.job.Status,
		Progress:  t.job.Progress,
		ElapsedMS: elapsed,
		Spinner:   t.job.Status == models.StatusPending || t.job.Status == models.StatusProcessing,
		CanCancel: !t.job.Status.Terminal(),
	}
	if t.job.Status.Failed() {
		snap.Error = t.job.ErrorMessage
		if snap.Error == "" {
			snap.Error = "processing failed"
		}
	}
	return snap
}
