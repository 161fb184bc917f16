package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"intigra/internal/apperr"
	"intigra/internal/index"
	"intigra/internal/settings"
)

const (
	NoDocuments        = "No documents available."
	NoMatchingDocument = "No documents found for the provided document_id."

	minPool        = 10
	poolMultiplier = 5
)

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Index interface {
	Snapshot(ctx context.Context) (*index.Snapshot, error)
}

// Reranker returns one relevance score per doc, in input order.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []string) ([]float64, error)
}

type SettingsProvider interface {
	Effective(ctx context.Context) *settings.Settings
}

type Candidate struct {
	ChunkID     string
	DocumentID  string
	ChunkIndex  int
	Text        string
	Similarity  float64
	RerankScore *float64
}

// Score is the rerank score when present, else the similarity.
func (c Candidate) Score() float64 {
	if c.RerankScore != nil {
		return *c.RerankScore
	}
	return c.Similarity
}

type Request struct {
	Query      string
	TopK       int
	DocumentID string
}

// Result holds the final candidates. When Empty is set the search found
// nothing to rank and Empty is the explanation for the caller.
type Result struct {
	Candidates []Candidate
	PoolSize   int
	Empty      string
}

type Service struct {
	embedder Embedder
	index    Index
	reranker Reranker
	settings SettingsProvider
}

// NewService wires the retriever. A nil reranker ranks by similarity alone.
func NewService(e Embedder, idx Index, r Reranker, set SettingsProvider) *Service {
	return &Service{embedder: e, index: idx, reranker: r, settings: set}
}

// PoolSize is how many similarity hits go to the reranker:
// min(max(topK*5, 10), maxPool).
func PoolSize(topK, maxPool int) int {
	n := topK * poolMultiplier
	if n < minPool {
		n = minPool
	}
	if n > maxPool {
		n = maxPool
	}
	return n
}

func (s *Service) Retrieve(ctx context.Context, req Request) (*Result, error) {
	if req.TopK < 1 {
		return nil, apperr.New(apperr.ErrValidation, "top_k must be greater than 0")
	}
	set := s.settings.Effective(ctx)

	snap, err := s.index.Snapshot(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrProcessing, "Failed to load embeddings", err)
	}
	if snap == nil {
		return &Result{Empty: NoDocuments}, nil
	}
	if req.DocumentID != "" {
		if snap = snap.Filter(req.DocumentID); snap == nil {
			return &Result{Empty: NoMatchingDocument}, nil
		}
	}

	vecs, err := s.embedder.Embed(ctx, []string{req.Query})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, apperr.New(apperr.ErrProcessing, fmt.Sprintf("expected 1 query embedding, got %d", len(vecs)))
	}
	q := vecs[0]
	if len(q) != snap.Dim {
		return nil, apperr.New(apperr.ErrProcessing, fmt.Sprintf("query embedding has %d dimensions, index has %d", len(q), snap.Dim))
	}

	poolSize := PoolSize(req.TopK, set.MaxRetrievalPool)
	pool := topBySimilarity(snap, q, poolSize)
	slog.DebugContext(ctx, "similarity search", "rows", snap.Len(), "pool", len(pool))

	if s.reranker != nil {
		if err := s.rerank(ctx, req.Query, pool); err != nil {
			return nil, err
		}
		sort.SliceStable(pool, func(i, j int) bool { return *pool[i].RerankScore > *pool[j].RerankScore })
	}

	final := applyThreshold(pool, set.RerankThreshold)
	if len(final) > req.TopK {
		final = final[:req.TopK]
	}

	return &Result{Candidates: final, PoolSize: poolSize}, nil
}

func (s *Service) rerank(ctx context.Context, query string, pool []Candidate) error {
	texts := make([]string, len(pool))
	for i, c := range pool {
		texts[i] = c.Text
	}
	scores, err := s.reranker.Rerank(ctx, query, texts)
	if err != nil {
		return err
	}
	if len(scores) != len(pool) {
		return apperr.New(apperr.ErrProcessing, fmt.Sprintf("reranker returned %d scores for %d candidates", len(scores), len(pool)))
	}
	for i := range pool {
		score := scores[i]
		pool[i].RerankScore = &score
	}
	return nil
}

// applyThreshold drops candidates scoring at or below threshold. If that
// would drop everything the full list is kept.
func applyThreshold(cands []Candidate, threshold float64) []Candidate {
	kept := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Score() > threshold {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return cands
	}
	return kept
}

func topBySimilarity(snap *index.Snapshot, q []float32, k int) []Candidate {
	qNorm := index.Norm(q)
	cands := make([]Candidate, len(snap.Rows))
	for i, r := range snap.Rows {
		cands[i] = Candidate{
			ChunkID:    r.ChunkID,
			DocumentID: r.DocumentID,
			ChunkIndex: r.ChunkIndex,
			Text:       r.Text,
			Similarity: Cosine(r.Vector, r.Norm, q, qNorm),
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].Similarity > cands[j].Similarity })
	if len(cands) > k {
		cands = cands[:k]
	}
	return cands
}

// Cosine is v·q / (|v||q|), clamped to [-1, 1]. A zero vector scores 0.
func Cosine(v []float32, vNorm float64, q []float32, qNorm float64) float64 {
	if vNorm == 0 || qNorm == 0 {
		return 0
	}
	var dot float64
	for i := range v {
		dot += float64(v[i]) * float64(q[i])
	}
	sim := dot / (vNorm * qNorm)
	switch {
	case sim > 1:
		return 1
	case sim < -1:
		return -1
	}
	return sim
}
