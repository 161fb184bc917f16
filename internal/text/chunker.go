package text

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"intigra/internal/apperr"
)

const (
	DefaultChunkSize = 800
	DefaultOverlap   = 100
)

// DefaultSeparators in priority order: paragraph, line, sentence, word, character.
var DefaultSeparators = []string{"\n\n", "\n", ".", " ", ""}

// Splitter is a recursive character splitter. Lengths are counted in runes.
type Splitter struct {
	ChunkSize  int
	Overlap    int
	Separators []string
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultOverlap
	}
	return &Splitter{ChunkSize: chunkSize, Overlap: overlap, Separators: DefaultSeparators}
}

// Split breaks text into chunks of at most ChunkSize runes where the
// separators allow it, with trailing pieces of each chunk (up to Overlap runes)
// repeated at the start of the next. Blank input yields no chunks.
func (s *Splitter) Split(text string) ([]string, error) {
	if text == "" {
		return nil, apperr.New(apperr.ErrProcessing, "Invalid or empty text for chunking")
	}
	if !utf8.ValidString(text) {
		return nil, apperr.New(apperr.ErrProcessing, "Error chunking text: input is not valid UTF-8")
	}

	chunks := s.split(text, s.Separators)
	if len(chunks) == 0 {
		slog.Warn("no chunks created from text")
		return []string{}, nil
	}
	return chunks, nil
}

func (s *Splitter) split(text string, separators []string) []string {
	var out []string

	separator := ""
	var rest []string
	if len(separators) > 0 {
		separator = separators[len(separators)-1]
	}
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var good []string
	for _, piece := range splitKeepSeparator(text, separator) {
		if utf8.RuneCountInString(piece) < s.ChunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			out = append(out, piece)
		} else {
			out = append(out, s.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		out = append(out, s.merge(good)...)
	}
	return out
}

// merge packs pieces greedily into chunks, carrying a tail of at most
// Overlap runes into the next chunk.
func (s *Splitter) merge(pieces []string) []string {
	var (
		chunks  []string
		current []string
		total   int
	)
	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if total+n > s.ChunkSize {
			if total > s.ChunkSize {
				slog.Debug("chunk exceeds configured size", "size", total, "limit", s.ChunkSize)
			}
			if len(current) > 0 {
				if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
					chunks = append(chunks, doc)
				}
				for total > s.Overlap || (total+n > s.ChunkSize && total > 0) {
					total -= utf8.RuneCountInString(current[0])
					current = current[1:]
				}
			}
		}
		current = append(current, p)
		total += n
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		chunks = append(chunks, doc)
	}
	return chunks
}

// splitKeepSeparator splits on sep and re-attaches it to the start of every
// piece after the first. An empty separator splits into runes.
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}

	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
