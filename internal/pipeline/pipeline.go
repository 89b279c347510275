// Package pipeline orchestrates directory indexing: scan, load, split,
// enrich, embed and store, one document at a time with per-document
// failure isolation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"golang.org/x/sync/errgroup"

	"pdf-rag/internal/config"
	"pdf-rag/internal/embedding"
	"pdf-rag/internal/models"
	"pdf-rag/internal/parser"
	"pdf-rag/internal/splitter"
	"pdf-rag/internal/store"
)

// Summary reports the fate of every document in one indexing run.
type Summary struct {
	Processed int
	Skipped   int
	Fragments int
	Failed    []string
}

// Pipeline ties the loader, splitter, embedder and vector store together
// for one indexing run.
type Pipeline struct {
	store    store.VectorStore
	embedder embeddings.Embedder
	splitter *splitter.Splitter
	cfg      *config.Config
	tags     map[string]string
}

// New builds a pipeline. tags are the static document-level tags applied
// to every fragment of the run (for example document_type and region).
func New(st store.VectorStore, embedder embeddings.Embedder, split *splitter.Splitter, cfg *config.Config, tags map[string]string) *Pipeline {
	return &Pipeline{
		store:    st,
		embedder: embedder,
		splitter: split,
		cfg:      cfg,
		tags:     tags,
	}
}

// IndexDirectory indexes every ingestible file in dir. A single failing
// document is logged, counted as skipped and never aborts the run; only
// an empty directory or context cancellation does.
func (p *Pipeline) IndexDirectory(ctx context.Context, dir string) (*Summary, error) {
	files, err := p.scanDirectory(dir)
	if err != nil {
		return nil, err
	}
	log.Info().Int("files", len(files)).Str("dir", dir).Msg("Found documents to index")

	var (
		mu      sync.Mutex
		summary Summary
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.RAG.Workers)
	for _, file := range files {
		file := file
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			stored, err := p.indexDocument(gctx, file)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// a model mismatch is a configuration error, not a bad
				// document; abort the run instead of skipping
				if errors.Is(err, models.ErrModelMismatch) {
					return err
				}
				log.Warn().Err(err).Str("file", file).Msg("Skipping document")
				summary.Skipped++
				summary.Failed = append(summary.Failed, file)
				return nil
			}
			summary.Processed++
			summary.Fragments += stored
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return &summary, err
	}
	if err := ctx.Err(); err != nil {
		return &summary, err
	}
	sort.Strings(summary.Failed)

	count, err := p.store.Count(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Could not verify store count after indexing")
	} else {
		log.Info().Int("entries", count).Msg("Vector store entry count after indexing")
	}

	log.Info().
		Int("processed", summary.Processed).
		Int("skipped", summary.Skipped).
		Int("fragments", summary.Fragments).
		Msg("Indexing run finished")
	return &summary, nil
}

// indexDocument runs one document through load, split, enrich, embed and a
// single insert. The one insert per document gives per-document atomicity:
// either all fragments of the document commit or none do.
func (p *Pipeline) indexDocument(ctx context.Context, filePath string) (int, error) {
	pages, err := parser.LoadDocument(filePath)
	if err != nil {
		return 0, err
	}

	fragments := p.splitter.SplitPages(pages)
	if len(fragments) == 0 {
		log.Debug().Str("file", filePath).Msg("Document produced no fragments")
		return 0, nil
	}
	for i := range fragments {
		fragments[i].MergeTags(p.tags)
	}

	embedded, err := embedding.EmbedFragments(ctx, p.embedder, fragments, embedding.Options{
		BatchSize:      p.cfg.EmbedLLM.BatchSize,
		MaxConcurrency: p.cfg.EmbedLLM.MaxConcurrency,
		MaxRetries:     p.cfg.EmbedLLM.MaxRetries,
	})
	if err != nil {
		return 0, err
	}

	stored, err := p.store.Insert(ctx, embedded)
	if err != nil {
		return 0, err
	}
	log.Info().Str("file", filePath).Int("pages", len(pages)).Int("fragments", stored).Msg("Indexed document")
	return stored, nil
}

// scanDirectory lists the files in dir carrying one of the configured
// extensions, in name order.
func (p *Pipeline) scanDirectory(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, allowed := range p.cfg.RAG.Extensions {
			if ext == allowed {
				files = append(files, filepath.Join(dir, entry.Name()))
				break
			}
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files with extensions %v in %s", models.ErrNoDocumentsFound, p.cfg.RAG.Extensions, dir)
	}
	sort.Strings(files)
	return files, nil
}
