package annotations

import (
	"fmt"
	"html"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/models"
)

// Fragment is one annotation prepared for display, in render order.
type Fragment struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Class    string `json:"class,omitempty"`
	Selected bool   `json:"selected"`
}

// Detail is the panel state for the selected annotation. ScorePercent is the
// score magnitude as a 0-100 bar width; ScoreSign keys the bar color.
type Detail struct {
	ID           string  `json:"id"`
	Text         string  `json:"text"`
	Score        float64 `json:"score"`
	ScorePercent int     `json:"score_percent"`
	ScoreSign    string  `json:"score_sign"`
	Emotion      string  `json:"emotion"`
	Position     int     `json:"position"`
	Length       int     `json:"length"`
}

// View holds the displayed annotation list for one job: position-ordered,
// with an active highlight mode and at most one selected fragment. Rendering
// the same list yields the same markup no matter how the entries arrived.
type View struct {
	mu         sync.RWMutex
	anns       []models.Annotation
	mode       HighlightMode
	selectedID string
}

func NewView() *View {
	return &View{mode: ModeSentiment}
}

// SetAnnotations replaces the list. The input is copied and stable-sorted by
// position ascending.
func (v *View) SetAnnotations(anns []models.Annotation) {
	sorted := make([]models.Annotation, len(anns))
	copy(sorted, anns)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	v.mu.Lock()
	defer v.mu.Unlock()
	v.anns = sorted
	if v.selectedID != "" && v.indexOfLocked(v.selectedID) < 0 {
		v.selectedID = ""
	}
}

// Add inserts one annotation keeping position order; among equal positions
// the earlier arrival renders first. Ids already present are ignored.
func (v *View) Add(ann models.Annotation) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.indexOfLocked(ann.ID) >= 0 {
		return
	}
	v.anns = append(v.anns, ann)
	sort.SliceStable(v.anns, func(i, j int) bool { return v.anns[i].Position < v.anns[j].Position })
}

// Update replaces the annotation with the same id. Unknown ids are dropped;
// the authoritative list arrives via SetAnnotations anyway.
func (v *View) Update(ann models.Annotation) {
	v.mu.Lock()
	defer v.mu.Unlock()
	i := v.indexOfLocked(ann.ID)
	if i < 0 {
		slog.Debug("[AnnotationView] Update for unknown annotation",
			slog.String("id", ann.ID))
		return
	}
	v.anns[i] = ann
	sort.SliceStable(v.anns, func(a, b int) bool { return v.anns[a].Position < v.anns[b].Position })
}

// Select marks the annotation selected, deselecting any other, and returns
// its detail panel state. Unknown ids leave the selection untouched.
func (v *View) Select(id string) (Detail, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	i := v.indexOfLocked(id)
	if i < 0 {
		return Detail{}, false
	}
	v.selectedID = id
	return detailFor(v.anns[i]), true
}

// ClearSelection deselects whatever is selected.
func (v *View) ClearSelection() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selectedID = ""
}

// SetMode switches the highlight mode. Unknown modes are ignored.
func (v *View) SetMode(mode HighlightMode) {
	if !ValidMode(mode) {
		slog.Warn("[AnnotationView] Ignoring unknown highlight mode",
			slog.String("mode", string(mode)))
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.mode = mode
}

// Mode returns the active highlight mode.
func (v *View) Mode() HighlightMode {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.mode
}

// Count returns the number of annotations in the view.
func (v *View) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.anns)
}

// Render returns the fragments in display order under the active mode.
func (v *View) Render() []Fragment {
	v.mu.RLock()
	defer v.mu.RUnlock()

	frags := make([]Fragment, len(v.anns))
	for i, ann := range v.anns {
		frags[i] = Fragment{
			ID:       ann.ID,
			Text:     ann.Text,
			Class:    classFor(ann, v.mode),
			Selected: ann.ID == v.selectedID,
		}
	}
	return frags
}

// RenderHTML renders the fragment list as inline span markup.
func (v *View) RenderHTML() string {
	frags := v.Render()

	var b strings.Builder
	for _, f := range frags {
		classes := "annotation"
		if f.Class != "" {
			classes += " " + f.Class
		}
		if f.Selected {
			classes += " selected"
		}
		fmt.Fprintf(&b, `<span class=%q data-id=%q>%s</span>`,
			classes, f.ID, html.EscapeString(f.Text))
		b.WriteByte('\n')
	}
	return b.String()
}

func classFor(ann models.Annotation, mode HighlightMode) string {
	switch mode {
	case ModeSentiment:
		return SentimentBucket(ann.SentimentScore)
	case ModeEmotion:
		if ann.Emotion == "" {
			return models.EmotionNeutral
		}
		return ann.Emotion
	}
	return ""
}

func detailFor(ann models.Annotation) Detail {
	sign := "neutral"
	if ann.SentimentScore > 0 {
		sign = "positive"
	} else if ann.SentimentScore < 0 {
		sign = "negative"
	}

	percent := int(math.Round(math.Abs(ann.SentimentScore) * 100))
	if percent > 100 {
		percent = 100
	}

	emotion := ann.Emotion
	if emotion == "" {
		emotion = models.EmotionNeutral
	}

	return Detail{
		ID:           ann.ID,
		Text:         ann.Text,
		Score:        ann.SentimentScore,
		ScorePercent: percent,
		ScoreSign:    sign,
		Emotion:      emotion,
		Position:     ann.Position,
		Length:       len(ann.Text),
	}
}

// indexOfLocked returns the index of the annotation with the id, or -1.
// Caller holds v.mu.
func (v *View) indexOfLocked(id string) int {
	for i, ann := range v.anns {
		if ann.ID == id {
			return i
		}
	}
	return -1
}
