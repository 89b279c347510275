package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-rag/internal/models"
)

// fakeEmbedder deterministically maps text length to a vector and records
// the batch sizes it was called with.
type fakeEmbedder struct {
	mu         sync.Mutex
	batchSizes []int
	calls      int
	failUntil  int // calls up to this count fail
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.batchSizes = append(f.batchSizes, len(texts))
	fail := f.calls <= f.failUntil
	f.mu.Unlock()
	if fail {
		return nil, errors.New("upstream unavailable")
	}
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vecs[i] = []float32{float32(len(text)), 1}
	}
	return vecs, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func makeFragments(n int) []models.Fragment {
	frags := make([]models.Fragment, n)
	for i := range frags {
		frags[i] = models.Fragment{
			Text:   fmt.Sprintf("fragment %0*d", i+1, i), // distinct lengths
			Source: "doc.pdf",
			Page:   i + 1,
		}
	}
	return frags
}

func TestEmbedFragments_OrderPreserving(t *testing.T) {
	fe := &fakeEmbedder{}
	frags := makeFragments(10)

	out, err := EmbedFragments(context.Background(), fe, frags, Options{BatchSize: 3, MaxConcurrency: 2})
	require.NoError(t, err)
	require.Len(t, out, len(frags))

	for i, f := range out {
		require.NotEmpty(t, f.Embedding, "fragment %d missing embedding", i)
		assert.Equal(t, float32(len(frags[i].Text)), f.Embedding[0], "fragment %d got another text's vector", i)
		assert.Equal(t, frags[i].Text, f.Text)
		assert.Equal(t, frags[i].Page, f.Page)
	}
	// inputs are untouched
	for _, f := range frags {
		assert.Nil(t, f.Embedding)
	}
}

func TestEmbedFragments_BatchSizes(t *testing.T) {
	fe := &fakeEmbedder{}
	frags := makeFragments(7)

	_, err := EmbedFragments(context.Background(), fe, frags, Options{BatchSize: 3, MaxConcurrency: 1})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 1}, fe.batchSizes)
}

func TestEmbedFragments_RetriesThenSucceeds(t *testing.T) {
	old := retryBackoff
	retryBackoff = time.Millisecond
	defer func() { retryBackoff = old }()

	fe := &fakeEmbedder{failUntil: 1}
	frags := makeFragments(2)

	out, err := EmbedFragments(context.Background(), fe, frags, Options{BatchSize: 10, MaxConcurrency: 1, MaxRetries: 3})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 2, fe.calls)
}

func TestEmbedFragments_RetriesExhausted(t *testing.T) {
	old := retryBackoff
	retryBackoff = time.Millisecond
	defer func() { retryBackoff = old }()

	fe := &fakeEmbedder{failUntil: 100}
	frags := makeFragments(2)

	out, err := EmbedFragments(context.Background(), fe, frags, Options{BatchSize: 10, MaxConcurrency: 1, MaxRetries: 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrEmbeddingService), "got %v", err)
	assert.Nil(t, out)
	assert.Equal(t, 2, fe.calls)
}

func TestEmbedFragments_Empty(t *testing.T) {
	out, err := EmbedFragments(context.Background(), &fakeEmbedder{}, nil, Options{})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestEmbedQuery(t *testing.T) {
	fe := &fakeEmbedder{}
	vec, err := EmbedQuery(context.Background(), fe, "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 1}, vec)
}
