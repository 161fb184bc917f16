// Package ingest resolves ingestion paths into candidate document files.
package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"intigra/internal/apperr"
)

// Collector resolves a path into the files whose extension is allowed.
type Collector struct {
	exts map[string]struct{}
}

func NewCollector(extensions []string) *Collector {
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}
	return &Collector{exts: exts}
}

// Supported reports whether path carries an allowed extension.
func (c *Collector) Supported(path string) bool {
	_, ok := c.exts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Collect returns path itself when it is a supported file, or every supported
// file below it when it is a directory. An empty result is not an error.
func (c *Collector) Collect(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, apperr.New(apperr.ErrValidation, "Invalid or missing path")
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("path does not exist", "path", path)
			return nil, apperr.New(apperr.ErrPathNotFound, fmt.Sprintf("Path does not exist: %s", path))
		}
		return nil, apperr.Wrap(apperr.ErrValidation, "Error validating files", err)
	}

	if !info.IsDir() {
		if !info.Mode().IsRegular() {
			return nil, apperr.New(apperr.ErrValidation, "Invalid path type")
		}
		if !c.Supported(path) {
			slog.Warn("unsupported file type", "path", path)
			return nil, apperr.New(apperr.ErrValidation, fmt.Sprintf("Unsupported file type: %s", path))
		}
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if d == nil {
				return walkErr
			}
			slog.Warn("skipping unreadable entry", "path", p, "error", walkErr)
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !c.Supported(p) {
			return nil
		}
		if d.Type().IsRegular() || isFileLink(p, d) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, "Error validating files", err)
	}

	slog.Info("collected files", "path", path, "count", len(files))
	return files, nil
}

// isFileLink reports whether d is a symlink resolving to a regular file.
func isFileLink(p string, d fs.DirEntry) bool {
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
