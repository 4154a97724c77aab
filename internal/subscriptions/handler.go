package subscriptions

import "github.com/DYAI2025/sentiment-analyzer-frontend/internal/models"

// JobEventHandler receives everything the change feed reports for a
// subscribed job. One type implements the whole surface, so forgetting a
// callback is a compile error rather than a silently empty map entry.
//
// For a job-row change the manager calls, in order: OnStatusChange when the
// status differs from the last one seen, OnProgressChange when the progress
// differs, then OnJobUpdate always. Annotation rows arrive as Added for
// inserts and Modified for updates.
type JobEventHandler interface {
	OnStatusChange(jobID string, status models.JobStatus)
	OnProgressChange(jobID string, progress int)
	OnJobUpdate(jobID string, job models.Job)
	OnAnnotationAdded(jobID string, ann models.Annotation)
	OnAnnotationModified(jobID string, ann models.Annotation)
	OnConnectionChange(connected bool)
}
