package parser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-rag/internal/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDocument_Text(t *testing.T) {
	path := writeFile(t, "notes.txt", "line one\nline two\n")

	pages, err := LoadDocument(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "line one\nline two\n", pages[0].Text)
	assert.Equal(t, path, pages[0].Source)
	assert.Equal(t, 1, pages[0].Page)
}

func TestLoadDocument_Markdown(t *testing.T) {
	path := writeFile(t, "readme.md", "# Title\n\nSome *emphasized* body text.\n")

	pages, err := LoadDocument(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Contains(t, pages[0].Text, "Title")
	assert.Contains(t, pages[0].Text, "emphasized")
	assert.NotContains(t, pages[0].Text, "#")
	assert.NotContains(t, pages[0].Text, "*")
}

func TestLoadDocument_CorruptPDF(t *testing.T) {
	path := writeFile(t, "broken.pdf", "this is not a pdf at all")

	pages, err := LoadDocument(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUnreadableDocument), "got %v", err)
	assert.Nil(t, pages)
}

func TestLoadDocument_UnsupportedFormat(t *testing.T) {
	path := writeFile(t, "image.png", "\x89PNG")

	_, err := LoadDocument(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUnreadableDocument), "got %v", err)
}

func TestLoadDocument_MissingFile(t *testing.T) {
	_, err := LoadDocument(filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUnreadableDocument), "got %v", err)
}
