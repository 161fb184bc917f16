// Package extract turns supported document files into plain text.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"intigra/internal/apperr"
)

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// Extract dispatches on extension. Library failures and unreadable bytes
// surface as ErrProcessing.
func (e *Extractor) Extract(ctx context.Context, path string) (text string, err error) {
	if strings.TrimSpace(path) == "" {
		return "", apperr.New(apperr.ErrInvalidFile, "Invalid file path")
	}

	defer func() {
		// the pdf reader panics on some malformed xref tables
		if r := recover(); r != nil {
			err = apperr.Wrap(apperr.ErrProcessing, "Error extracting text", fmt.Errorf("%v", r))
		}
	}()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt":
		text, err = extractTXT(path)
	case ".pdf":
		text, err = extractPDF(path)
	case ".docx":
		text, err = extractDOCX(path)
	default:
		slog.WarnContext(ctx, "unsupported file type", "path", path)
		return "", apperr.New(apperr.ErrInvalidFile, fmt.Sprintf("Unsupported file type: %s", path))
	}
	if err != nil {
		slog.ErrorContext(ctx, "extraction failed", "path", path, "error", err)
		return "", apperr.Wrap(apperr.ErrProcessing, "Error extracting text", err)
	}

	slog.InfoContext(ctx, "text extracted", "path", path, "format", ext, "chars", len(text))
	return text, nil
}

func extractTXT(path string) (string, error) {
	b, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path comes from the collector walk
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("file is not valid UTF-8")
	}
	return string(b), nil
}
