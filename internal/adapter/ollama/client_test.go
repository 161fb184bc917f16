package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intigra/internal/adapter/ollama"
	"intigra/internal/answer"
	"intigra/internal/apperr"
)

func TestEmbedder_Embed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "all-minilm", req["model"])
		inputs := req["input"].([]interface{})

		embs := make([][]float32, len(inputs))
		for i := range inputs {
			embs[i] = []float32{float32(i), 1}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"embeddings": embs})
	}))
	defer ts.Close()

	e := ollama.NewEmbedder(ollama.NewClient(ts.URL, time.Second), "")

	vecs, err := e.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}, {2, 1}}, vecs)
}

func TestEmbedder_Errors(t *testing.T) {
	t.Run("Empty Input", func(t *testing.T) {
		e := ollama.NewEmbedder(ollama.NewClient("http://unused", time.Second), "")
		_, err := e.Embed(context.Background(), nil)
		assert.ErrorIs(t, err, apperr.ErrProcessing)
	})

	t.Run("Count Mismatch", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"embeddings": [][]float32{{1, 2}}})
		}))
		defer ts.Close()

		e := ollama.NewEmbedder(ollama.NewClient(ts.URL, time.Second), "")
		_, err := e.Embed(context.Background(), []string{"a", "b"})
		assert.ErrorIs(t, err, apperr.ErrProcessing)
	})

	t.Run("Server Error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("model not loaded"))
		}))
		defer ts.Close()

		e := ollama.NewEmbedder(ollama.NewClient(ts.URL, time.Second), "")
		_, err := e.Embed(context.Background(), []string{"a"})
		assert.ErrorIs(t, err, apperr.ErrServiceUnavailable)
		assert.Contains(t, err.Error(), "model not loaded")
	})

	t.Run("Unreachable", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := ts.URL
		ts.Close()

		e := ollama.NewEmbedder(ollama.NewClient(url, time.Second), "")
		_, err := e.Embed(context.Background(), []string{"a"})
		assert.ErrorIs(t, err, apperr.ErrServiceUnavailable)
	})
}

func TestGenerator_Generate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tinyllama", req["model"])
		assert.Equal(t, false, req["stream"])

		opts := req["options"].(map[string]interface{})
		assert.Equal(t, 0.0, opts["temperature"])
		assert.Equal(t, 150.0, opts["num_predict"])
		assert.Equal(t, []interface{}{"TEXT:", "QUESTION:", "INSTRUCTION:"}, opts["stop"])

		json.NewEncoder(w).Encode(map[string]interface{}{"response": " Paris ", "done": true})
	}))
	defer ts.Close()

	g := ollama.NewGenerator(ollama.NewClient(ts.URL, time.Second), "")
	out, err := g.Generate(context.Background(), "prompt", answer.DefaultGenerateOptions())
	require.NoError(t, err)
	assert.Equal(t, " Paris ", out)
}
