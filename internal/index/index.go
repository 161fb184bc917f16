// Package index keeps every stored chunk vector in memory for similarity
// search.
//
// The index is built lazily from the shards of completed documents on first
// use and is then served unchanged. Documents stored after that stay
// invisible until Invalidate or Reload is called, or the process restarts.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"intigra/internal/apperr"
	"intigra/internal/metrics"
	"intigra/internal/shard"
)

type Row struct {
	ChunkID    string
	DocumentID string
	ChunkIndex int
	Text       string
	Vector     []float32
	Norm       float64
}

// Snapshot is an immutable view of the index.
type Snapshot struct {
	Rows     []Row
	Dim      int
	LoadedAt time.Time
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}

// Filter keeps only the rows of one document. It returns nil when nothing
// matches.
func (s *Snapshot) Filter(documentID string) *Snapshot {
	if s == nil {
		return nil
	}
	var rows []Row
	for _, r := range s.Rows {
		if r.DocumentID == documentID {
			rows = append(rows, r)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	return &Snapshot{Rows: rows, Dim: s.Dim, LoadedAt: s.LoadedAt}
}

type ShardSource interface {
	ShardPaths(ctx context.Context) ([]string, error)
}

type ShardReader interface {
	Read(ctx context.Context, path string) ([]shard.Row, error)
}

type Service struct {
	source  ShardSource
	reader  ShardReader
	metrics *metrics.Metrics

	mu     sync.RWMutex
	snap   *Snapshot
	loaded bool
	gen    uint64
	group  singleflight.Group
}

func New(source ShardSource, reader ShardReader, m *metrics.Metrics) *Service {
	return &Service{source: source, reader: reader, metrics: m}
}

// Snapshot returns the cached index, loading it on first use. Concurrent
// callers on a cold cache share one load. A nil snapshot means no documents
// are stored; it is never cached.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	if s.loaded {
		snap := s.snap
		s.mu.RUnlock()
		return snap, nil
	}
	gen := s.gen
	s.mu.RUnlock()

	v, err, shared := s.group.Do(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		s.mu.RLock()
		if s.loaded && s.gen == gen {
			snap := s.snap
			s.mu.RUnlock()
			return snap, nil
		}
		s.mu.RUnlock()

		// Joined callers must not fail because the first caller went away.
		snap, err := s.load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		// An empty corpus is not cached so the next query scans again.
		s.mu.Lock()
		if s.gen == gen {
			s.snap = snap
			s.loaded = snap != nil
			s.metrics.SetIndexRows(snap.Len())
		}
		s.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.DebugContext(ctx, "joined in-flight index load")
	}
	snap, _ := v.(*Snapshot)
	return snap, nil
}

// Peek returns the cached snapshot without loading. loaded is false while
// the cache is cold.
func (s *Service) Peek() (snap *Snapshot, loaded bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.loaded
}

// Invalidate drops the cached index; the next Snapshot call rebuilds it.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.snap = nil
	s.loaded = false
	s.gen++
	s.mu.Unlock()
	slog.Info("embedding index invalidated")
}

// Reload rebuilds the index now.
func (s *Service) Reload(ctx context.Context) (*Snapshot, error) {
	s.Invalidate()
	return s.Snapshot(ctx)
}

func (s *Service) load(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	paths, err := s.source.ShardPaths(ctx)
	if err != nil {
		return nil, err
	}

	var rows []Row
	dim := 0
	for _, p := range paths {
		shardRows, err := s.reader.Read(ctx, p)
		if err != nil {
			slog.ErrorContext(ctx, "skipping unreadable shard", "path", p, "error", err)
			continue
		}
		for _, r := range shardRows {
			if len(r.Embedding) == 0 {
				return nil, apperr.New(apperr.ErrProcessing, fmt.Sprintf("chunk %s has no embedding", r.ChunkID))
			}
			if dim == 0 {
				dim = len(r.Embedding)
			}
			if len(r.Embedding) != dim {
				return nil, apperr.New(apperr.ErrProcessing, fmt.Sprintf("embedding dimension mismatch: chunk %s has %d, index has %d", r.ChunkID, len(r.Embedding), dim))
			}
			rows = append(rows, Row{
				ChunkID:    r.ChunkID,
				DocumentID: r.DocumentID,
				ChunkIndex: int(r.ChunkIndex),
				Text:       r.Text,
				Vector:     r.Embedding,
				Norm:       Norm(r.Embedding),
			})
		}
	}

	slog.InfoContext(ctx, "embedding index loaded", "shards", len(paths), "rows", len(rows), "dim", dim, "duration", time.Since(start))
	if len(rows) == 0 {
		return nil, nil
	}
	return &Snapshot{Rows: rows, Dim: dim, LoadedAt: time.Now()}, nil
}

func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
