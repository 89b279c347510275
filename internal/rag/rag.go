// Package rag answers questions against an indexed collection: embed the
// query, retrieve the nearest fragments, synthesize a context-grounded
// answer with the chat model.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"pdf-rag/internal/config"
	"pdf-rag/internal/embedding"
	"pdf-rag/internal/llmservice"
	"pdf-rag/internal/models"
	"pdf-rag/internal/store"
)

type RAG struct {
	store    store.VectorStore
	embedder embeddings.Embedder
	llm      llms.Model
	cfg      *config.Config
}

func NewRAG(st store.VectorStore, embedder embeddings.Embedder, llm llms.Model, cfg *config.Config) *RAG {
	return &RAG{store: st, embedder: embedder, llm: llm, cfg: cfg}
}

// Retrieve embeds the query with the collection's embedding model and
// returns the top-k nearest fragments, optionally filter-constrained.
func (r *RAG) Retrieve(ctx context.Context, query string, k int, filter map[string]string) ([]store.Result, error) {
	queryEmbedding, err := embedding.EmbedQuery(ctx, r.embedder, query)
	if err != nil {
		return nil, err
	}
	results, err := r.store.Query(ctx, queryEmbedding, k, filter)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("results", len(results)).Int("k", k).Msg("Retrieved fragments")
	return results, nil
}

// BuildPrompt fills the answer template with the retrieved fragments, in
// retrieval order, joined by blank lines. An empty result set produces an
// empty context block; the template then forces an explicit "not found"
// answer.
func BuildPrompt(question string, results []store.Result) string {
	texts := make([]string, 0, len(results))
	for _, res := range results {
		texts = append(texts, res.Text)
	}
	contextBlock := strings.Join(texts, "\n\n")
	return fmt.Sprintf(models.AnswerPromptTemplate, contextBlock, question)
}

// Query runs retrieval and answer synthesis for one question: top-k
// retrieval, one non-streaming completion call.
func (r *RAG) Query(ctx context.Context, question string, filter map[string]string) (*models.PromptResponse, error) {
	results, err := r.Retrieve(ctx, question, r.cfg.RAG.TopK, filter)
	if err != nil {
		return nil, err
	}

	prompt := BuildPrompt(question, results)
	answer, err := llmservice.GenerateContent(ctx, r.llm, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	return &models.PromptResponse{
		Query:   question,
		Source:  formatSources(results),
		Content: answer,
	}, nil
}

// formatSources lists the provenance of the used fragments, best match
// first, one path:page per line, deduplicated.
func formatSources(results []store.Result) string {
	var sb strings.Builder
	seen := make(map[string]bool)
	for _, res := range results {
		ref := fmt.Sprintf("%s:%s", res.Metadata[models.MetaSource], res.Metadata[models.MetaPage])
		if seen[ref] {
			continue
		}
		seen[ref] = true
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(ref)
	}
	return sb.String()
}
