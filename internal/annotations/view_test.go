package annotations

import (
	"strings"
	"testing"

	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/models"
)

func TestSentimentBucket(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{0.5, "positive"},
		{0.0, "neutral"},
		{-0.5, "negative"},
		{0.3, "neutral"},
		{-0.3, "neutral"},
		{0.31, "positive"},
		{-0.31, "negative"},
		{1.0, "positive"},
		{-1.0, "negative"},
	}
	for _, tc := range cases {
		if got := SentimentBucket(tc.score); got != tc.want {
			t.Errorf("SentimentBucket(%v) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestRenderOrderIndependentOfArrival(t *testing.T) {
	a := models.Annotation{ID: "a", Position: 5, Text: "five"}
	b := models.Annotation{ID: "b", Position: 2, Text: "two"}
	c := models.Annotation{ID: "c", Position: 9, Text: "nine"}

	v1 := NewView()
	v1.SetAnnotations([]models.Annotation{a, b, c})
	v2 := NewView()
	v2.SetAnnotations([]models.Annotation{c, a, b})

	if v1.RenderHTML() != v2.RenderHTML() {
		t.Errorf("markup differs by arrival order:\n%s\nvs\n%s", v1.RenderHTML(), v2.RenderHTML())
	}
	frags := v1.Render()
	wantOrder := []string{"b", "a", "c"}
	for i, want := range wantOrder {
		if frags[i].ID != want {
			t.Errorf("frags[%d].ID = %q, want %q", i, frags[i].ID, want)
		}
	}
}

func TestRenderIdempotent(t *testing.T) {
	v := NewView()
	v.SetAnnotations([]models.Annotation{
		{ID: "a", Position: 1, Text: "x", SentimentScore: 0.9},
		{ID: "b", Position: 0, Text: "y", SentimentScore: -0.9},
	})

	first := v.RenderHTML()
	for i := 0; i < 3; i++ {
		if got := v.RenderHTML(); got != first {
			t.Fatalf("render %d differs:\n%s\nvs\n%s", i, got, first)
		}
	}
}

func TestAddKeepsPositionOrder(t *testing.T) {
	v := NewView()
	v.SetAnnotations([]models.Annotation{
		{ID: "a", Position: 2}, {ID: "c", Position: 9},
	})

	v.Add(models.Annotation{ID: "b", Position: 5})
	v.Add(models.Annotation{ID: "b", Position: 5}) // duplicate id ignored

	frags := v.Render()
	if len(frags) != 3 {
		t.Fatalf("len = %d", len(frags))
	}
	wantOrder := []string{"a", "b", "c"}
	for i, want := range wantOrder {
		if frags[i].ID != want {
			t.Errorf("frags[%d].ID = %q, want %q", i, frags[i].ID, want)
		}
	}
}

func TestUpdateReplacesById(t *testing.T) {
	v := NewView()
	v.SetAnnotations([]models.Annotation{{ID: "a", Position: 1, Text: "old", SentimentScore: 0.0}})

	v.Update(models.Annotation{ID: "a", Position: 1, Text: "new", SentimentScore: 0.8})
	v.Update(models.Annotation{ID: "ghost", Position: 4, Text: "x"}) // unknown id dropped

	frags := v.Render()
	if len(frags) != 1 {
		t.Fatalf("len = %d", len(frags))
	}
	if frags[0].Text != "new" || frags[0].Class != "positive" {
		t.Errorf("frag = %+v", frags[0])
	}
}

func TestHighlightModeClasses(t *testing.T) {
	v := NewView()
	v.SetAnnotations([]models.Annotation{
		{ID: "a", Position: 0, SentimentScore: 0.8, Emotion: models.EmotionJoy},
		{ID: "b", Position: 1, SentimentScore: -0.8},
	})

	frags := v.Render()
	if frags[0].Class != "positive" || frags[1].Class != "negative" {
		t.Errorf("sentiment classes = %q %q", frags[0].Class, frags[1].Class)
	}

	v.SetMode(ModeEmotion)
	frags = v.Render()
	if frags[0].Class != models.EmotionJoy {
		t.Errorf("emotion class = %q", frags[0].Class)
	}
	if frags[1].Class != models.EmotionNeutral {
		t.Errorf("missing emotion should default to neutral, got %q", frags[1].Class)
	}

	v.SetMode(ModeOff)
	frags = v.Render()
	if frags[0].Class != "" || frags[1].Class != "" {
		t.Errorf("off mode classes = %q %q", frags[0].Class, frags[1].Class)
	}

	v.SetMode("sparkle")
	if v.Mode() != ModeOff {
		t.Errorf("unknown mode changed state to %q", v.Mode())
	}
}

func TestSelectionExclusive(t *testing.T) {
	v := NewView()
	v.SetAnnotations([]models.Annotation{
		{ID: "a", Position: 0, Text: "alpha", SentimentScore: 0.42, Emotion: models.EmotionJoy},
		{ID: "b", Position: 1, Text: "beta"},
	})

	detail, ok := v.Select("a")
	if !ok {
		t.Fatal("Select(a) failed")
	}
	if detail.Text != "alpha" || detail.ScoreSign != "positive" || detail.ScorePercent != 42 {
		t.Errorf("detail = %+v", detail)
	}
	if detail.Length != len("alpha") {
		t.Errorf("Length = %d", detail.Length)
	}

	if _, ok := v.Select("b"); !ok {
		t.Fatal("Select(b) failed")
	}
	frags := v.Render()
	if frags[0].Selected {
		t.Error("a still selected after selecting b")
	}
	if !frags[1].Selected {
		t.Error("b not selected")
	}

	if _, ok := v.Select("ghost"); ok {
		t.Error("Select(ghost) should fail")
	}
	frags = v.Render()
	if !frags[1].Selected {
		t.Error("failed select must not clear the existing selection")
	}

	v.ClearSelection()
	frags = v.Render()
	if frags[0].Selected || frags[1].Selected {
		t.Error("selection survived ClearSelection")
	}
}

func TestDetailSignsAndBounds(t *testing.T) {
	v := NewView()
	v.SetAnnotations([]models.Annotation{
		{ID: "neg", Position: 0, Text: "n", SentimentScore: -0.65},
		{ID: "zero", Position: 1, Text: "z", SentimentScore: 0},
	})

	detail, _ := v.Select("neg")
	if detail.ScoreSign != "negative" || detail.ScorePercent != 65 {
		t.Errorf("detail = %+v", detail)
	}

	detail, _ = v.Select("zero")
	if detail.ScoreSign != "neutral" || detail.ScorePercent != 0 {
		t.Errorf("detail = %+v", detail)
	}
	if detail.Emotion != models.EmotionNeutral {
		t.Errorf("Emotion = %q", detail.Emotion)
	}
}

func TestRenderHTMLEscapesText(t *testing.T) {
	v := NewView()
	v.SetAnnotations([]models.Annotation{
		{ID: "a", Position: 0, Text: `<script>alert("x")</script>`},
	})

	out := v.RenderHTML()
	if strings.Contains(out, "<script>") {
		t.Errorf("unescaped markup: %s", out)
	}
	if !strings.Contains(out, "&lt;script&gt;") {
		t.Errorf("expected escaped text, got %s", out)
	}
}

func TestRenderDocumentHTML(t *testing.T) {
	pre := RenderDocumentHTML(models.Job{ExtractedText: "a < b"})
	if pre != "<pre>a &lt; b</pre>" {
		t.Errorf("pre = %q", pre)
	}

	md := RenderDocumentHTML(models.Job{MarkdownOutput: "# Title"})
	if !strings.Contains(md, "<h1>Title</h1>") {
		t.Errorf("markdown render = %q", md)
	}

	if got := RenderDocumentHTML(models.Job{}); got != "" {
		t.Errorf("empty job rendered %q", got)
	}
}

func TestSetAnnotationsDropsStaleSelection(t *testing.T) {
	v := NewView()
	v.SetAnnotations([]models.Annotation{{ID: "a", Position: 0, Text: "x"}})
	v.Select("a")

	v.SetAnnotations([]models.Annotation{{ID: "b", Position: 0, Text: "y"}})

	frags := v.Render()
	if frags[0].Selected {
		t.Error("selection must not transfer to a new list")
	}
}
