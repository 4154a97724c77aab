package models

import "time"

// Emotion labels the processing engine may attach to an annotation.
const (
	EmotionJoy      = "joy"
	EmotionSadness  = "sadness"
	EmotionAnger    = "anger"
	EmotionFear     = "fear"
	EmotionSurprise = "surprise"
	EmotionNeutral  = "neutral"
)

// Annotation mirrors one row of the annotations collection: a positioned
// text fragment with its sentiment score and optional emotion label.
// Rows are written exclusively by the external engine; Position defines the
// reading order and is not necessarily contiguous.
type Annotation struct {
	ID             string         `json:"id,omitempty"`
	JobID          string         `json:"job_id"`
	Text           string         `json:"text"`
	Position       int            `json:"position"`
	SentimentScore float64        `json:"sentiment_score"`
	Emotion        string         `json:"emotion,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at,omitempty"`
}
