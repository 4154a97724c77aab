package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Change-feed event types as delivered by the platform.
const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

// Tables the frontend subscribes to.
const (
	TableJobs             = "processing_jobs"
	TableAnnotations      = "annotations"
	TableAnalysisRequests = "analysis_requests"
)

// ChangeEvent is one row-level event from the platform change feed. Record
// holds the row image after the change; OldRecord is only populated for
// UPDATE and DELETE events and may be a partial image.
type ChangeEvent struct {
	Type            string          `json:"type"`
	Table           string          `json:"table"`
	Record          json.RawMessage `json:"record,omitempty"`
	OldRecord       json.RawMessage `json:"old_record,omitempty"`
	CommitTimestamp time.Time       `json:"commit_timestamp,omitempty"`
}

// DecodeJob unmarshals the event's row image into a Job.
func (e ChangeEvent) DecodeJob() (Job, error) {
	var job Job
	if e.Record == nil {
		return job, fmt.Errorf("change event for %s has no record image", e.Table)
	}
	if err := json.Unmarshal(e.Record, &job); err != nil {
		return job, fmt.Errorf("failed to decode job record: %w", err)
	}
	return job, nil
}

// DecodeAnnotation unmarshals the event's row image into an Annotation.
func (e ChangeEvent) DecodeAnnotation() (Annotation, error) {
	var annotation Annotation
	if e.Record == nil {
		return annotation, fmt.Errorf("change event for %s has no record image", e.Table)
	}
	if err := json.Unmarshal(e.Record, &annotation); err != nil {
		return annotation, fmt.Errorf("failed to decode annotation record: %w", err)
	}
	return annotation, nil
}
