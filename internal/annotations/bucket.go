package annotations

// HighlightMode selects how rendered fragments are classed.
type HighlightMode string

const (
	ModeSentiment HighlightMode = "sentiment"
	ModeEmotion   HighlightMode = "emotion"
	ModeOff       HighlightMode = "off"
)

// ValidMode reports whether m is one of the three highlight modes.
func ValidMode(m HighlightMode) bool {
	switch m {
	case ModeSentiment, ModeEmotion, ModeOff:
		return true
	}
	return false
}

// SentimentBucket maps a score to its display bucket. The boundaries are
// exclusive: exactly 0.3 and exactly -0.3 are neutral.
func SentimentBucket(score float64) string {
	if score > 0.3 {
		return "positive"
	}
	if score < -0.3 {
		return "negative"
	}
	return "neutral"
}
