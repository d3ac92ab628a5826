package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPlainText(t *testing.T) {
	e := New()
	got, err := e.Extract("notes.txt", "text/plain", []byte("Access is reviewed quarterly.\n"))
	require.NoError(t, err)
	assert.Equal(t, "Access is reviewed quarterly.\n", got)
}

func TestExtractStripsControlBytes(t *testing.T) {
	e := New()
	got, err := e.Extract("weird.bin", "application/octet-stream", []byte("ok\x00\x01\x02 text\tkept\n"))
	require.NoError(t, err)
	assert.Equal(t, "ok text\tkept\n", got)
}

func TestExtractInvalidUTF8Dropped(t *testing.T) {
	e := New()
	got, err := e.Extract("latin1.txt", "text/plain", []byte{'c', 'a', 'f', 0xe9, '!'})
	require.NoError(t, err)
	assert.Equal(t, "caf!", got)
}

func TestExtractMarkdown(t *testing.T) {
	e := New()
	md := "# Retention Policy\n\nBackups are kept for **90 days**.\n\n- encrypted at rest\n- tested monthly\n\n```\nretention: 90d\n```\n"
	got, err := e.Extract("policy.md", "text/markdown", []byte(md))
	require.NoError(t, err)

	assert.Contains(t, got, "Retention Policy")
	assert.Contains(t, got, "Backups are kept for 90 days")
	assert.Contains(t, got, "encrypted at rest")
	assert.Contains(t, got, "retention: 90d")
	// markup syntax is not carried into the text
	assert.NotContains(t, got, "**")
	assert.NotContains(t, got, "# ")
	assert.NotContains(t, got, "```")
}

func TestExtractRoutesByExtension(t *testing.T) {
	e := New()
	// .md without a content type still goes through the markdown path
	got, err := e.Extract("README.md", "", []byte("*emphasis* stays as text"))
	require.NoError(t, err)
	assert.Equal(t, "emphasis stays as text", got)
}

func TestExtractCorruptPDF(t *testing.T) {
	e := New()
	_, err := e.Extract("broken.pdf", "application/pdf", []byte("this is not a pdf"))
	assert.Error(t, err)
}
