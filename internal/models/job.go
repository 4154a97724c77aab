package models

import "time"

// JobStatus represents the lifecycle state of a processing job. The row is
// created by this frontend with StatusPending; every later transition is
// written by the external processing engine and observed over the change feed.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusError      JobStatus = "error"
	StatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether no further mutation of the job row is expected.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusError, StatusCancelled:
		return true
	}
	return false
}

// Failed reports whether the status is one of the two failure spellings the
// processing engine writes.
func (s JobStatus) Failed() bool {
	return s == StatusFailed || s == StatusError
}

// Job mirrors one row of the processing_jobs collection.
type Job struct {
	ID             string         `json:"id,omitempty"`
	UserID         string         `json:"user_id"`
	FilePath       string         `json:"file_path"`
	FileName       string         `json:"file_name"`
	FileSize       int64          `json:"file_size"`
	FileType       string         `json:"file_type"`
	Status         JobStatus      `json:"status"`
	Progress       int            `json:"progress"`
	ExtractedText  string         `json:"extracted_text,omitempty"`
	MarkdownOutput string         `json:"markdown_output,omitempty"`
	Options        map[string]any `json:"options,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	CreatedAt      time.Time      `json:"created_at,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}
