package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReport_Summary(t *testing.T) {
	tests := []struct {
		name    string
		files   []FileResult
		elapsed float64
		want    string
	}{
		{"whole seconds keep a fraction", []FileResult{Stored("a", "d", 1)}, 2, "Processed: 1, Failed: 0, Time: 2.0s"},
		{"rounds to two places", []FileResult{Stored("a", "d", 1), Failed("b", "boom")}, 1.23456, "Processed: 1, Failed: 1, Time: 1.23s"},
		{"trailing zero dropped", nil, 0.5, "Processed: 0, Failed: 0, Time: 0.5s"},
		{"all failed", []FileResult{Failed("a", ReasonEmptyFile), Failed("b", ReasonNoChunks)}, 0.004, "Processed: 0, Failed: 2, Time: 0.0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Report{Files: tt.files, ElapsedSeconds: tt.elapsed}
			assert.Equal(t, tt.want, r.Summary())
		})
	}
}

func TestReport_Failures(t *testing.T) {
	r := &Report{}
	r.Add(Failed("/in/a.pdf", "extract pdf: malformed"))
	r.Add(Stored("/in/b.txt", "doc-1", 3))
	r.Add(Failed("/in/c.txt", ReasonEmptyFile))

	assert.Equal(t, []string{"/in/a.pdf - extract pdf: malformed", "/in/c.txt - Empty file"}, r.Failures())
	assert.Equal(t, 1, r.Processed())
	assert.Equal(t, 2, r.Failed())
}

func TestTransitionsOnlyMoveForward(t *testing.T) {
	assert.ElementsMatch(t, []string{StatusPending}, allowedFrom[StatusProcessing])
	assert.ElementsMatch(t, []string{StatusProcessing}, allowedFrom[StatusCompleted])
	assert.ElementsMatch(t, []string{StatusPending, StatusProcessing}, allowedFrom[StatusFailed])
	_, ok := allowedFrom[StatusPending]
	assert.False(t, ok, "nothing moves back to PENDING")

	for _, to := range []string{StatusProcessing, StatusCompleted, StatusFailed} {
		for _, from := range allowedFrom[to] {
			assert.False(t, IsTerminal(from), "%s must not leave terminal %s", to, from)
		}
	}
}
