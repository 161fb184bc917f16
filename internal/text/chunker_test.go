package text

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intigra/internal/apperr"
)

func TestSplitter_Split(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		input   string
		want    []string
	}{
		{
			name:    "Short Text Single Chunk",
			size:    800,
			overlap: 100,
			input:   "  hello world  ",
			want:    []string{"hello world"},
		},
		{
			name:    "Word Split Without Overlap",
			size:    10,
			overlap: 3,
			input:   "aaaa bbbb cccc dddd",
			want:    []string{"aaaa bbbb", "cccc dddd"},
		},
		{
			name:    "Word Split With Overlap",
			size:    10,
			overlap: 5,
			input:   "aa bb cc dd ee",
			want:    []string{"aa bb cc", "cc dd ee"},
		},
		{
			name:    "Character Fallback",
			size:    10,
			overlap: 3,
			input:   "abcdefghijklmnopqrstuvwxy",
			want:    []string{"abcdefghij", "hijklmnopq", "opqrstuvwx", "vwxy"},
		},
		{
			name:    "Paragraphs Fit Together",
			size:    800,
			overlap: 100,
			input:   "First paragraph.\n\nSecond paragraph.",
			want:    []string{"First paragraph.\n\nSecond paragraph."},
		},
		{
			name:    "Whitespace Only",
			size:    800,
			overlap: 100,
			input:   "   \n\n  ",
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Splitter{ChunkSize: tt.size, Overlap: tt.overlap, Separators: DefaultSeparators}
			got, err := s.Split(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitter_EmptyInput(t *testing.T) {
	_, err := NewSplitter(800, 100).Split("")
	assert.ErrorIs(t, err, apperr.ErrProcessing)
}

func TestSplitter_InvalidUTF8(t *testing.T) {
	_, err := NewSplitter(800, 100).Split(string([]byte{0xff, 0xfe}))
	assert.ErrorIs(t, err, apperr.ErrProcessing)
}

func TestSplitter_Bounds(t *testing.T) {
	para := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 12)
	input := strings.Join([]string{para, para, para, para}, "\n\n")

	chunks, err := NewSplitter(800, 100).Split(input)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 800)
		assert.NotEmpty(t, c)
	}
}

func TestSplitter_OverlapCarriesTail(t *testing.T) {
	sentence := "Alpha beta gamma delta epsilon zeta eta theta iota kappa"
	input := strings.Repeat(sentence+" ", 40)

	chunks, err := NewSplitter(200, 50).Split(input)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1])
		last := prevWords[len(prevWords)-1]
		assert.True(t, strings.Contains(chunks[i], last), "chunk %d should repeat tail word %q", i, last)
	}
}

func TestSplitter_MultibyteCountsRunes(t *testing.T) {
	input := strings.Repeat("é", 15)
	chunks, err := (&Splitter{ChunkSize: 10, Overlap: 2, Separators: DefaultSeparators}).Split(input)
	require.NoError(t, err)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 10)
	}
	assert.Equal(t, strings.Repeat("é", 10), chunks[0])
}

func TestNewSplitter_Defaults(t *testing.T) {
	s := NewSplitter(0, -1)
	assert.Equal(t, DefaultChunkSize, s.ChunkSize)
	assert.Equal(t, DefaultOverlap, s.Overlap)
	assert.Equal(t, []string{"\n\n", "\n", ".", " ", ""}, s.Separators)
}
