package models

import (
	"encoding/json"
	"time"
)

// AnalysisRequest mirrors one row of the analysis_requests collection: a
// fire-and-forget signal to the backend asking for sentiment analysis of the
// given text. The frontend writes these rows and never reads Result; the
// verdict arrives as annotation rows on the change feed instead.
type AnalysisRequest struct {
	ID        string          `json:"id,omitempty"`
	JobID     string          `json:"job_id"`
	Text      string          `json:"text"`
	Status    JobStatus       `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at,omitempty"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`
}
