package retrieval

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryLogger_ThreadSafety(t *testing.T) {
	var buf bytes.Buffer
	logger := NewQueryLogger(&buf)

	concurrency := 50
	iterations := 100
	var wg sync.WaitGroup

	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				logger.Log(QueryLogEntry{
					Query:    "test",
					Duration: time.Millisecond,
				})
			}
		}()
	}
	wg.Wait()

	// Verify output is valid JSON stream
	decoder := json.NewDecoder(&buf)
	count := 0
	for decoder.More() {
		var entry QueryLogEntry
		err := decoder.Decode(&entry)
		if err != nil {
			t.Fatalf("Failed to decode entry %d: %v", count, err)
		}
		count++
	}

	expected := concurrency * iterations
	if count != expected {
		t.Errorf("Expected %d entries, got %d", expected, count)
	}
}

func TestQueryLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	NewQueryLogger(&buf).Log(QueryLogEntry{
		Query:         "capital of france",
		TopK:          3,
		PoolSize:      15,
		NumResults:    2,
		ChunkIDs:      []string{"c1", "c2"},
		Outcome:       "answered",
		Duration:      1500 * time.Millisecond,
		CorrelationID: "corr-1",
	})

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "capital of france", got["query"])
	assert.Equal(t, 15.0, got["retrieval_pool_size"])
	assert.Equal(t, 1500.0, got["latency_ms"])
	assert.Equal(t, "corr-1", got["correlation_id"])
	assert.NotContains(t, got, "document_id")
}

func TestNewFileQueryLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "query.log")
	l, err := NewFileQueryLogger(path)
	require.NoError(t, err)

	l.Log(QueryLogEntry{Query: "one"})
	l.Log(QueryLogEntry{Query: "two"})
	require.NoError(t, l.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	assert.Len(t, lines, 2)
}

func TestQueryLogger_Nil(t *testing.T) {
	var l *QueryLogger
	assert.NotPanics(t, func() { l.Log(QueryLogEntry{Query: "x"}) })
	assert.NoError(t, l.Close())
}
