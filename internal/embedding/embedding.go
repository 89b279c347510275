package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

var retryBackoff = time.Second

// NewEmbedder builds the embedding client for the configured provider.
// The model choice is fixed for the lifetime of one collection.
func NewEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	switch llmConfig.Provider {
	case "ollama":
		return newOllamaEmbedder(llmConfig)
	default:
		return newOpenAIEmbedder(llmConfig)
	}
}

func newOpenAIEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithEmbeddingModel(llmConfig.Model),
	}
	if llmConfig.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding LLM: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

func newOllamaEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(llmConfig.BaseURL),
		ollama.WithModel(llmConfig.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding LLM: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// Options bound the external embedding service load.
type Options struct {
	BatchSize      int
	MaxConcurrency int
	MaxRetries     int
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = config.DefaultBatchSize
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = config.DefaultMaxConcurrency
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = config.DefaultMaxRetries
	}
	return o
}

// EmbedFragments computes embeddings for all fragments of one document.
// Fragments are embedded in bounded-size batches with at most
// MaxConcurrency batches in flight. Each batch is all-or-nothing; a batch
// that keeps failing after retries fails the whole call, so a document is
// either fully embedded or not at all.
func EmbedFragments(ctx context.Context, embedder embeddings.Embedder, fragments []models.Fragment, opts Options) ([]models.Fragment, error) {
	if len(fragments) == 0 {
		return nil, nil
	}
	opts = opts.withDefaults()

	batches := batchTexts(fragments, opts.BatchSize)
	vectors := make([][][]float32, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.MaxConcurrency)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			vecs, err := embedBatch(gctx, embedder, batch, opts.MaxRetries)
			if err != nil {
				return err
			}
			if len(vecs) != len(batch) {
				return fmt.Errorf("%w: got %d vectors for %d inputs", models.ErrEmbeddingService, len(vecs), len(batch))
			}
			vectors[i] = vecs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]models.Fragment, len(fragments))
	copy(out, fragments)
	pos := 0
	for _, vecs := range vectors {
		for _, vec := range vecs {
			out[pos].Embedding = vec
			pos++
		}
	}
	return out, nil
}

// EmbedQuery embeds a single query string with the same model used at
// index time.
func EmbedQuery(ctx context.Context, embedder embeddings.Embedder, query string) ([]float32, error) {
	vec, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbeddingService, err)
	}
	return vec, nil
}

func batchTexts(fragments []models.Fragment, batchSize int) [][]string {
	var batches [][]string
	for start := 0; start < len(fragments); start += batchSize {
		end := start + batchSize
		if end > len(fragments) {
			end = len(fragments)
		}
		batch := make([]string, 0, end-start)
		for _, f := range fragments[start:end] {
			batch = append(batch, f.Text)
		}
		batches = append(batches, batch)
	}
	return batches
}

// embedBatch retries a failed batch with linear backoff. The service error
// surface is opaque, so every failure is treated as transient until
// retries run out; context cancellation is never retried.
func embedBatch(ctx context.Context, embedder embeddings.Embedder, texts []string, maxRetries int) ([][]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		vecs, err := embedder.EmbedDocuments(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < maxRetries {
			log.Warn().Err(err).Int("attempt", attempt).Int("batch_size", len(texts)).Msg("Embedding batch failed, retrying")
			select {
			case <-time.After(time.Duration(attempt) * retryBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("%w: %v", models.ErrEmbeddingService, lastErr)
}
