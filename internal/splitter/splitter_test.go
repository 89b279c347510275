package splitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-rag/internal/models"
)

func TestNew(t *testing.T) {
	t.Run("valid parameters", func(t *testing.T) {
		s, err := New(1000, 200)
		require.NoError(t, err)
		require.NotNil(t, s)
	})

	t.Run("zero overlap is valid", func(t *testing.T) {
		_, err := New(100, 0)
		require.NoError(t, err)
	})

	t.Run("overlap equal to size rejected", func(t *testing.T) {
		_, err := New(100, 100)
		require.Error(t, err)
	})

	t.Run("overlap above size rejected", func(t *testing.T) {
		_, err := New(100, 150)
		require.Error(t, err)
	})

	t.Run("negative overlap rejected", func(t *testing.T) {
		_, err := New(100, -1)
		require.Error(t, err)
	})

	t.Run("non-positive size rejected", func(t *testing.T) {
		_, err := New(0, 0)
		require.Error(t, err)
	})
}

func TestSplit_BoundedSize(t *testing.T) {
	sizes := []struct{ size, overlap int }{
		{50, 0}, {50, 10}, {100, 20}, {100, 99}, {1000, 200},
	}
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 60)
	for _, tc := range sizes {
		s, err := New(tc.size, tc.overlap)
		require.NoError(t, err)
		for i, chunk := range s.Split(text) {
			assert.LessOrEqual(t, len(chunk), tc.size, "chunk %d exceeds size %d", i, tc.size)
		}
	}
}

func TestSplit_Overlap(t *testing.T) {
	const overlap = 10
	s, err := New(40, overlap)
	require.NoError(t, err)

	text := strings.Repeat("abcdefghij", 20) // no separators, pure hard cuts
	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		shared := chunks[i]
		if len(shared) > overlap {
			shared = shared[:overlap]
		}
		assert.True(t, strings.HasSuffix(chunks[i-1], shared),
			"chunk %d does not start with the tail of chunk %d", i, i-1)
	}
}

func TestSplit_RoundTrip(t *testing.T) {
	const overlap = 15
	s, err := New(80, overlap)
	require.NoError(t, err)

	text := strings.Repeat("Lorem ipsum dolor sit amet, consectetur adipiscing elit. ", 12)
	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	var sb strings.Builder
	sb.WriteString(chunks[0])
	for _, chunk := range chunks[1:] {
		sb.WriteString(chunk[overlap:])
	}
	assert.Equal(t, text, sb.String())
}

func TestSplit_PrefersParagraphBreaks(t *testing.T) {
	s, err := New(60, 0)
	require.NoError(t, err)

	text := "first paragraph here.\n\nsecond paragraph that continues for a while longer."
	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)
	assert.True(t, strings.HasSuffix(chunks[0], "\n\n"), "expected cut after paragraph break, got %q", chunks[0])
	assert.True(t, strings.HasPrefix(chunks[1], "second"), "got %q", chunks[1])
}

func TestSplit_PrefersSentenceBoundaryOverWordCut(t *testing.T) {
	s, err := New(40, 0)
	require.NoError(t, err)

	text := "A short sentence. Another sentence that keeps going well past the limit."
	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)
	assert.True(t, strings.HasSuffix(chunks[0], ". "), "expected cut after sentence, got %q", chunks[0])
}

func TestSplit_ShortInputSingleChunk(t *testing.T) {
	s, err := New(1000, 200)
	require.NoError(t, err)

	text := "short text"
	chunks := s.Split(text)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestSplit_EmptyInput(t *testing.T) {
	s, err := New(1000, 200)
	require.NoError(t, err)

	assert.Empty(t, s.Split(""))
	assert.Empty(t, s.Split("   \n\t  "))
}

func TestSplit_MultibyteSafety(t *testing.T) {
	s, err := New(10, 3)
	require.NoError(t, err)

	text := strings.Repeat("héllo wörld ", 10)
	for _, chunk := range s.Split(text) {
		assert.True(t, strings.ToValidUTF8(chunk, "") == chunk, "chunk is not valid utf8: %q", chunk)
	}
}

func TestSplitPages(t *testing.T) {
	s, err := New(50, 10)
	require.NoError(t, err)

	pages := []models.Page{
		{Text: strings.Repeat("page one content. ", 10), Source: "doc.pdf", Page: 1},
		{Text: "", Source: "doc.pdf", Page: 2},
		{Text: "short page three", Source: "doc.pdf", Page: 3},
	}
	fragments := s.SplitPages(pages)
	require.NotEmpty(t, fragments)

	var pageOneCount, pageThreeCount int
	lastPage := 0
	for _, f := range fragments {
		assert.Equal(t, "doc.pdf", f.Source)
		assert.GreaterOrEqual(t, f.Page, lastPage, "fragments out of reading order")
		lastPage = f.Page
		switch f.Page {
		case 1:
			pageOneCount++
		case 2:
			t.Errorf("empty page produced a fragment: %q", f.Text)
		case 3:
			pageThreeCount++
		}
	}
	assert.Greater(t, pageOneCount, 1)
	assert.Equal(t, 1, pageThreeCount)
}
