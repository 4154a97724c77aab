package upload

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file exceeds size limit")
	ErrEmptyFile       = errors.New("file is empty")
)

// acceptedExtensions are the document types the processing pipeline can
// extract text from.
var acceptedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".doc":  true,
	".txt":  true,
	".md":   true,
	".html": true,
}

// File is one upload candidate as received from the presentation layer.
type File struct {
	Name        string
	ContentType string
	Data        []byte
	Options     map[string]any
}

// Validator applies the accept rules before a file may enter the queue.
type Validator struct {
	maxBytes int64
}

func NewValidator(maxBytes int64) *Validator {
	return &Validator{maxBytes: maxBytes}
}

// Validate returns nil when the file may be uploaded. Rejections wrap one of
// the sentinel errors above so callers can classify them.
func (v *Validator) Validate(f File) error {
	ext := strings.ToLower(filepath.Ext(f.Name))
	if !acceptedExtensions[ext] {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	if len(f.Data) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, f.Name)
	}
	if v.maxBytes > 0 && int64(len(f.Data)) > v.maxBytes {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrFileTooLarge, f.Name, len(f.Data), v.maxBytes)
	}
	return nil
}
