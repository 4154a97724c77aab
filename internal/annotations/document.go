package annotations

import (
	"html"

	"github.com/russross/blackfriday/v2"

	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/models"
)

// RenderDocumentHTML builds the document preview for a job: the extracted
// text as an escaped <pre> block when present, else the markdown output
// rendered to HTML, else empty.
func RenderDocumentHTML(job models.Job) string {
	if job.ExtractedText != "" {
		return "<pre>" + html.EscapeString(job.ExtractedText) + "</pre>"
	}
	if job.MarkdownOutput != "" {
		return string(blackfriday.Run([]byte(job.MarkdownOutput), blackfriday.WithNoExtensions()))
	}
	return ""
}
