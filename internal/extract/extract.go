// Package extract reads the plain text of uploaded documents.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
)

// Extractor returns the text of the document at path.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// FileExtractor dispatches on file extension.
type FileExtractor struct{}

// NewFileExtractor returns the default extractor.
func NewFileExtractor() *FileExtractor {
	return &FileExtractor{}
}

// SupportedExtensions lists the extensions Extract accepts.
func SupportedExtensions() []string {
	return []string{".pdf", ".txt", ".md"}
}

// Supported reports whether path has a supported extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions() {
		if e == ext {
			return true
		}
	}
	return false
}

// Extract reads path. Unsupported extensions fail with ErrCodeUnsupportedFile.
func (e *FileExtractor) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return extractText(path)
	case ".pdf":
		return extractPDF(ctx, path)
	default:
		return "", docerrors.New(docerrors.ErrCodeUnsupportedFile,
			fmt.Sprintf("unsupported file type %q", filepath.Ext(path)), nil).
			WithDetail("path", path).
			WithSuggestion("Upload a .pdf, .txt, or .md file")
	}
}

func extractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", docerrors.New(docerrors.ErrCodeFileNotFound, "failed to read document", err).WithDetail("path", path)
	}
	if !utf8.Valid(data) {
		return "", docerrors.ValidationError("document is not valid UTF-8 text", nil).WithDetail("path", path)
	}
	return string(data), nil
}

// extractPDF concatenates the plain text of every page. Pages whose text
// cannot be read are skipped.
func extractPDF(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", docerrors.New(docerrors.ErrCodeFileNotFound, "failed to open PDF", err).WithDetail("path", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat PDF: %w", err)
	}

	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return "", docerrors.ValidationError("failed to parse PDF", err).WithDetail("path", path)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		if !strings.HasSuffix(text, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}
