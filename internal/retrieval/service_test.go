package retrieval_test

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"intigra/internal/apperr"
	"intigra/internal/index"
	"intigra/internal/retrieval"
	"intigra/internal/settings"
)

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

type MockReranker struct{ mock.Mock }

func (m *MockReranker) Rerank(ctx context.Context, query string, docs []string) ([]float64, error) {
	args := m.Called(ctx, query, docs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}

type staticIndex struct {
	snap *index.Snapshot
	err  error
}

func (s staticIndex) Snapshot(ctx context.Context) (*index.Snapshot, error) {
	return s.snap, s.err
}

type staticSettings settings.Settings

func (s staticSettings) Effective(ctx context.Context) *settings.Settings {
	set := settings.Settings(s)
	return &set
}

var defaults = staticSettings{RerankThreshold: -5.0, MaxRetrievalPool: 20, DefaultTopK: 5}

func row(id, doc string, v ...float32) index.Row {
	return index.Row{ChunkID: id, DocumentID: doc, Text: "text " + id, Vector: v, Norm: index.Norm(v)}
}

func snapshot(rows ...index.Row) *index.Snapshot {
	return &index.Snapshot{Rows: rows, Dim: len(rows[0].Vector)}
}

func ids(cs []retrieval.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ChunkID
	}
	return out
}

func TestPoolSize(t *testing.T) {
	tests := []struct {
		topK, max, want int
	}{
		{1, 20, 10},
		{2, 20, 10},
		{3, 20, 15},
		{4, 20, 20},
		{10, 20, 20},
		{100, 20, 20},
		{3, 12, 12},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("top_k=%d max=%d", tt.topK, tt.max), func(t *testing.T) {
			assert.Equal(t, tt.want, retrieval.PoolSize(tt.topK, tt.max))
		})
	}
}

func TestCosine(t *testing.T) {
	v := []float32{0.3, -1.2, 4.5}
	assert.InDelta(t, 1.0, retrieval.Cosine(v, index.Norm(v), v, index.Norm(v)), 1e-9)

	a, b := []float32{1, 0}, []float32{0, 1}
	assert.InDelta(t, 0.0, retrieval.Cosine(a, 1, b, 1), 1e-9)

	neg := []float32{-0.3, 1.2, -4.5}
	assert.InDelta(t, -1.0, retrieval.Cosine(v, index.Norm(v), neg, index.Norm(neg)), 1e-9)

	zero := []float32{0, 0, 0}
	assert.Equal(t, 0.0, retrieval.Cosine(zero, 0, v, index.Norm(v)))

	for i := 0; i < 50; i++ {
		x := []float32{float32(i) - 25, float32(i * i % 7), -3}
		y := []float32{2, float32(i % 5), float32(i) / 3}
		s := retrieval.Cosine(x, index.Norm(x), y, index.Norm(y))
		assert.True(t, s >= -1 && s <= 1, "similarity %v out of range", s)
	}
}

func TestRetrieve_NoDocuments(t *testing.T) {
	emb := new(MockEmbedder)
	svc := retrieval.NewService(emb, staticIndex{}, nil, defaults)

	res, err := svc.Retrieve(context.Background(), retrieval.Request{Query: "q", TopK: 5})
	require.NoError(t, err)
	assert.Equal(t, retrieval.NoDocuments, res.Empty)
	assert.Empty(t, res.Candidates)
	emb.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
}

func TestRetrieve_DocumentFilterNoMatch(t *testing.T) {
	svc := retrieval.NewService(new(MockEmbedder), staticIndex{snap: snapshot(row("a", "A", 1, 0))}, nil, defaults)

	res, err := svc.Retrieve(context.Background(), retrieval.Request{Query: "q", TopK: 5, DocumentID: "missing"})
	require.NoError(t, err)
	assert.Equal(t, retrieval.NoMatchingDocument, res.Empty)
}

func TestRetrieve_DocumentFilter(t *testing.T) {
	emb := new(MockEmbedder)
	emb.On("Embed", mock.Anything, []string{"q"}).Return([][]float32{{1, 0}}, nil)
	snap := snapshot(row("a", "A", 1, 0), row("b", "B", 1, 0), row("c", "A", 0, 1))
	svc := retrieval.NewService(emb, staticIndex{snap: snap}, nil, defaults)

	res, err := svc.Retrieve(context.Background(), retrieval.Request{Query: "q", TopK: 5, DocumentID: "A"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(res.Candidates))
}

func TestRetrieve_SimilarityOnly(t *testing.T) {
	emb := new(MockEmbedder)
	emb.On("Embed", mock.Anything, []string{"q"}).Return([][]float32{{1, 0}}, nil)
	snap := snapshot(
		row("far", "A", 0, 1),
		row("near", "A", 1, 0),
		row("mid", "B", 1, 1),
	)
	svc := retrieval.NewService(emb, staticIndex{snap: snap}, nil, defaults)

	res, err := svc.Retrieve(context.Background(), retrieval.Request{Query: "q", TopK: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"near", "mid"}, ids(res.Candidates))
	assert.Equal(t, 10, res.PoolSize)
	assert.InDelta(t, 1.0, res.Candidates[0].Score(), 1e-9)
	assert.Nil(t, res.Candidates[0].RerankScore)
}

func TestRetrieve_RerankThresholdAndCut(t *testing.T) {
	emb := new(MockEmbedder)
	emb.On("Embed", mock.Anything, mock.Anything).Return([][]float32{{1, 0}}, nil)
	snap := snapshot(
		row("s1", "A", 1, 0),
		row("s2", "A", 0.9, 0.1),
		row("s3", "A", 0.5, 0.5),
		row("s4", "A", 0.1, 0.9),
	)
	rr := new(MockReranker)
	// Input order is similarity order: s1, s2, s3, s4.
	rr.On("Rerank", mock.Anything, "q", []string{"text s1", "text s2", "text s3", "text s4"}).
		Return([]float64{-7, 2.5, 8, -5}, nil)

	svc := retrieval.NewService(emb, staticIndex{snap: snap}, rr, defaults)
	res, err := svc.Retrieve(context.Background(), retrieval.Request{Query: "q", TopK: 5})
	require.NoError(t, err)

	// -5 sits on the threshold and is dropped along with -7.
	assert.Equal(t, []string{"s3", "s2"}, ids(res.Candidates))
	assert.Equal(t, 8.0, res.Candidates[0].Score())

	res, err = svc.Retrieve(context.Background(), retrieval.Request{Query: "q", TopK: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"s3"}, ids(res.Candidates))
}

func TestRetrieve_ThresholdFallbackKeepsReranked(t *testing.T) {
	emb := new(MockEmbedder)
	emb.On("Embed", mock.Anything, mock.Anything).Return([][]float32{{1, 0}}, nil)
	snap := snapshot(row("x", "A", 1, 0), row("y", "A", 0, 1), row("z", "A", 1, 1))
	rr := new(MockReranker)
	rr.On("Rerank", mock.Anything, mock.Anything, mock.Anything).Return([]float64{-9, -6, -11}, nil)

	svc := retrieval.NewService(emb, staticIndex{snap: snap}, rr, defaults)
	res, err := svc.Retrieve(context.Background(), retrieval.Request{Query: "q", TopK: 10})
	require.NoError(t, err)

	require.Len(t, res.Candidates, 3, "all below threshold falls back to the full list")
	for i := 1; i < len(res.Candidates); i++ {
		assert.GreaterOrEqual(t, res.Candidates[i-1].Score(), res.Candidates[i].Score())
	}
	assert.ElementsMatch(t, []string{"x", "y", "z"}, ids(res.Candidates))
}

func TestRetrieve_RerankIsStablePermutation(t *testing.T) {
	emb := new(MockEmbedder)
	emb.On("Embed", mock.Anything, mock.Anything).Return([][]float32{{1, 0}}, nil)

	var rows []index.Row
	for i := 0; i < 12; i++ {
		angle := float64(i) * 0.1
		rows = append(rows, row(fmt.Sprintf("c%02d", i), "A", float32(math.Cos(angle)), float32(math.Sin(angle))))
	}
	rr := new(MockReranker)
	rr.On("Rerank", mock.Anything, mock.Anything, mock.Anything).
		Return([]float64{1, 3, 3, 0, 2, 2, 5, 1, 0, 4}, nil)

	svc := retrieval.NewService(emb, staticIndex{snap: snapshot(rows...)}, rr, defaults)
	res, err := svc.Retrieve(context.Background(), retrieval.Request{Query: "q", TopK: 1})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "c06", res.Candidates[0].ChunkID)

	res, err = svc.Retrieve(context.Background(), retrieval.Request{Query: "q", TopK: 2})
	require.NoError(t, err)
	// Pool of 10 is the 10 most similar rows; equal scores keep similarity order.
	assert.Equal(t, []string{"c06", "c09"}, ids(res.Candidates))
}

func TestRetrieve_Errors(t *testing.T) {
	snap := snapshot(row("a", "A", 1, 0, 0))

	t.Run("Invalid TopK", func(t *testing.T) {
		svc := retrieval.NewService(new(MockEmbedder), staticIndex{snap: snap}, nil, defaults)
		_, err := svc.Retrieve(context.Background(), retrieval.Request{Query: "q", TopK: 0})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("Index Load", func(t *testing.T) {
		svc := retrieval.NewService(new(MockEmbedder), staticIndex{err: apperr.New(apperr.ErrDatabase, "list shards")}, nil, defaults)
		_, err := svc.Retrieve(context.Background(), retrieval.Request{Query: "q", TopK: 1})
		assert.ErrorIs(t, err, apperr.ErrProcessing)
	})

	t.Run("Dimension Mismatch", func(t *testing.T) {
		emb := new(MockEmbedder)
		emb.On("Embed", mock.Anything, mock.Anything).Return([][]float32{{1, 0}}, nil)
		svc := retrieval.NewService(emb, staticIndex{snap: snap}, nil, defaults)
		_, err := svc.Retrieve(context.Background(), retrieval.Request{Query: "q", TopK: 1})
		assert.ErrorIs(t, err, apperr.ErrProcessing)
	})

	t.Run("Embedder Down", func(t *testing.T) {
		emb := new(MockEmbedder)
		emb.On("Embed", mock.Anything, mock.Anything).Return(nil, apperr.New(apperr.ErrServiceUnavailable, "Embedding service unavailable"))
		svc := retrieval.NewService(emb, staticIndex{snap: snap}, nil, defaults)
		_, err := svc.Retrieve(context.Background(), retrieval.Request{Query: "q", TopK: 1})
		assert.ErrorIs(t, err, apperr.ErrServiceUnavailable)
	})

	t.Run("Reranker Short Response", func(t *testing.T) {
		emb := new(MockEmbedder)
		emb.On("Embed", mock.Anything, mock.Anything).Return([][]float32{{1, 0, 0}}, nil)
		rr := new(MockReranker)
		rr.On("Rerank", mock.Anything, mock.Anything, mock.Anything).Return([]float64{}, nil)
		svc := retrieval.NewService(emb, staticIndex{snap: snap}, rr, defaults)
		_, err := svc.Retrieve(context.Background(), retrieval.Request{Query: "q", TopK: 1})
		assert.ErrorIs(t, err, apperr.ErrProcessing)
	})
}
