package extract_test

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intigra/internal/apperr"
	"intigra/internal/extract"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
  <w:body>
    <w:p><w:r><w:t>First </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
    <w:p></w:p>
    <w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>See </w:t></w:r><w:hyperlink r:id="rId5"><w:r><w:t>the docs</w:t></w:r></w:hyperlink><w:r><w:t>.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`

func writeDocx(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestExtract_TXT(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(p, []byte("héllo\nworld"), 0o644))

	text, err := extract.New().Extract(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "héllo\nworld", text)
}

func TestExtract_TXT_InvalidUTF8(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(p, []byte{0xff, 0xfe, 0x00}, 0o644))

	_, err := extract.New().Extract(context.Background(), p)
	assert.ErrorIs(t, err, apperr.ErrProcessing)
}

func TestExtract_DOCX(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.docx")
	writeDocx(t, p, map[string]string{"word/document.xml": documentXML})

	text, err := extract.New().Extract(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "First paragraph.\n\nSee the docs.\nSecond paragraph.", text)
}

func TestExtract_DOCX_MissingBody(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.docx")
	writeDocx(t, p, map[string]string{"docProps/core.xml": "<x/>"})

	_, err := extract.New().Extract(context.Background(), p)
	assert.ErrorIs(t, err, apperr.ErrProcessing)
}

func TestExtract_PDF(t *testing.T) {
	tests := []struct {
		name string
		file string
		want string
	}{
		{"PagesInOrderSkippingEmpty", "pages.pdf", "First page.Third page."},
		{"PageTreeShorterThanCount", "truncated_tree.pdf", "Only page."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := extract.New().Extract(context.Background(), filepath.Join("testdata", tt.file))
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
		})
	}
}

func TestExtract_CorruptPDF(t *testing.T) {
	p := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(p, []byte("this is not a pdf"), 0o644))

	_, err := extract.New().Extract(context.Background(), p)
	assert.ErrorIs(t, err, apperr.ErrProcessing)
}

func TestExtract_Unsupported(t *testing.T) {
	_, err := extract.New().Extract(context.Background(), "/tmp/a.csv")
	assert.ErrorIs(t, err, apperr.ErrInvalidFile)
}

func TestExtract_MissingFile(t *testing.T) {
	_, err := extract.New().Extract(context.Background(), filepath.Join(t.TempDir(), "gone.txt"))
	assert.ErrorIs(t, err, apperr.ErrProcessing)
}
