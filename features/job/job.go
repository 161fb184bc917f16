package job

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

const (
	ResultNoFiles   = "No supported files found"
	ReasonEmptyFile = "Empty file"
	ReasonNoChunks  = "Chunking failed"
	MessageStarted  = "Ingestion started"
)

// allowedFrom lists the states a job may move out of to reach each target.
var allowedFrom = map[string][]string{
	StatusProcessing: {StatusPending},
	StatusCompleted:  {StatusProcessing},
	StatusFailed:     {StatusPending, StatusProcessing},
}

func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

type Job struct {
	ID        string    `json:"job_id"`
	Path      string    `json:"path"`
	Status    string    `json:"status"`
	Result    *string   `json:"result"`
	Report    *Report   `json:"report,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileResult is the outcome of one file: stored when Reason is empty,
// failed otherwise.
type FileResult struct {
	Path       string `json:"path"`
	DocumentID string `json:"document_id,omitempty"`
	Chunks     int    `json:"chunks,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

func Stored(path, documentID string, chunks int) FileResult {
	return FileResult{Path: path, DocumentID: documentID, Chunks: chunks}
}

func Failed(path, reason string) FileResult {
	return FileResult{Path: path, Reason: reason}
}

func (f FileResult) OK() bool { return f.Reason == "" }

func (f FileResult) String() string {
	if f.OK() {
		return f.Path
	}
	return fmt.Sprintf("%s - %s", f.Path, f.Reason)
}

type Report struct {
	Files          []FileResult `json:"files"`
	ElapsedSeconds float64      `json:"elapsed_seconds"`
}

func (r *Report) Add(f FileResult) {
	r.Files = append(r.Files, f)
}

func (r *Report) Processed() int {
	n := 0
	for _, f := range r.Files {
		if f.OK() {
			n++
		}
	}
	return n
}

func (r *Report) Failed() int {
	return len(r.Files) - r.Processed()
}

// Failures renders each failed file as "<path> - <reason>" in processing order.
func (r *Report) Failures() []string {
	var out []string
	for _, f := range r.Files {
		if !f.OK() {
			out = append(out, f.String())
		}
	}
	return out
}

// Summary is the job's result line, e.g. "Processed: 3, Failed: 1, Time: 2.5s".
func (r *Report) Summary() string {
	return fmt.Sprintf("Processed: %d, Failed: %d, Time: %ss", r.Processed(), r.Failed(), formatSeconds(r.ElapsedSeconds))
}

// formatSeconds rounds to two places and always keeps a fractional part.
func formatSeconds(s float64) string {
	out := strconv.FormatFloat(math.Round(s*100)/100, 'f', -1, 64)
	if !strings.Contains(out, ".") {
		out += ".0"
	}
	return out
}
