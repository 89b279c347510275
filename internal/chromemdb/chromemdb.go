// Package chromemdb is the primary vector store backend: an on-disk
// chromem-go collection that survives process restarts and pins the
// embedding model it was created with.
package chromemdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"pdf-rag/internal/helper"
	"pdf-rag/internal/models"
	"pdf-rag/internal/store"
)

const (
	compress     = false
	metaFileName = "collection.yaml"
)

// collectionMeta is the sidecar persisted next to the chromem files. It
// pins the embedding model and vector dimensionality of the collection;
// chromem itself does not expose collection metadata for reading back.
type collectionMeta struct {
	Collection     string `yaml:"collection"`
	EmbeddingModel string `yaml:"embedding_model"`
	Dimension      int    `yaml:"dimension"`
}

// Store encapsulates the chromem-go database operations.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	dbPath     string
	model      string

	mu   sync.Mutex
	meta collectionMeta
}

// Create initializes a fresh collection at dbPath. It refuses to reuse a
// path that already holds a non-empty collection, so two embedding-model
// configurations can never silently share one store.
func Create(dbPath, collectionName, embeddingModel string) (*Store, error) {
	if _, err := os.Stat(metaPath(dbPath)); err == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrCollectionExists, dbPath)
	}
	s, err := newStore(dbPath, collectionName, embeddingModel)
	if err != nil {
		return nil, err
	}
	if s.collection.Count() > 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrCollectionExists, dbPath)
	}
	s.meta = collectionMeta{Collection: collectionName, EmbeddingModel: embeddingModel}
	if err := s.saveMeta(); err != nil {
		return nil, err
	}
	return s, nil
}

// Open loads an existing persisted collection. It fails with
// models.ErrNotFound when there is nothing at the path and with
// models.ErrModelMismatch when the collection was built with a different
// embedding model than the one configured now.
func Open(dbPath, collectionName, embeddingModel string) (*Store, error) {
	meta, err := loadMeta(dbPath)
	if err != nil {
		return nil, err
	}
	if meta.EmbeddingModel != embeddingModel {
		return nil, fmt.Errorf("%w: collection at %s was created with model %q, configured model is %q",
			models.ErrModelMismatch, dbPath, meta.EmbeddingModel, embeddingModel)
	}
	s, err := newStore(dbPath, meta.Collection, embeddingModel)
	if err != nil {
		return nil, err
	}
	s.meta = meta
	return s, nil
}

// OpenOrCreate opens the collection at dbPath, creating it when absent.
func OpenOrCreate(dbPath, collectionName, embeddingModel string) (*Store, error) {
	if _, err := os.Stat(metaPath(dbPath)); err == nil {
		return Open(dbPath, collectionName, embeddingModel)
	}
	return Create(dbPath, collectionName, embeddingModel)
}

func newStore(dbPath, collectionName, embeddingModel string) (*Store, error) {
	db, err := chromem.NewPersistentDB(dbPath, compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %v", err)
	}
	// embeddings are always supplied by the caller, so no embedding func
	c, err := db.GetOrCreateCollection(collectionName, map[string]string{"embedding_model": embeddingModel}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %v", err)
	}
	return &Store{
		db:         db,
		collection: c,
		dbPath:     dbPath,
		model:      embeddingModel,
	}, nil
}

// Insert appends the embedded fragments as new entries. Ids are fresh
// uuids, so re-inserting the same fragments duplicates them. The vector
// dimensionality is checked against the collection before any write.
func (s *Store) Insert(ctx context.Context, fragments []models.Fragment) (int, error) {
	if len(fragments) == 0 {
		return 0, nil
	}

	dim := len(fragments[0].Embedding)
	for _, f := range fragments {
		if len(f.Embedding) == 0 {
			return 0, fmt.Errorf("fragment %s:%d has no embedding", f.Source, f.Page)
		}
		if len(f.Embedding) != dim {
			return 0, fmt.Errorf("%w: mixed embedding dimensions %d and %d in one insert",
				models.ErrModelMismatch, dim, len(f.Embedding))
		}
	}

	s.mu.Lock()
	if s.meta.Dimension != 0 && s.meta.Dimension != dim {
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: collection holds %d-dimensional vectors, insert has %d",
			models.ErrModelMismatch, s.meta.Dimension, dim)
	}
	if s.meta.Dimension == 0 {
		s.meta.Dimension = dim
		if err := s.saveMeta(); err != nil {
			s.mu.Unlock()
			return 0, err
		}
	}
	s.mu.Unlock()

	docs := make([]chromem.Document, 0, len(fragments))
	for _, f := range fragments {
		id, err := helper.GenerateUUID()
		if err != nil {
			return 0, err
		}
		docs = append(docs, chromem.Document{
			ID:        id,
			Content:   f.Text,
			Metadata:  f.Metadata(),
			Embedding: f.Embedding,
		})
	}

	// chromem flushes each document to disk before AddDocuments returns
	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		return 0, fmt.Errorf("failed to add documents: %v", err)
	}
	return len(docs), nil
}

// Query returns up to k entries ranked by descending cosine similarity.
// An empty store yields an empty result, never an error.
func (s *Store) Query(ctx context.Context, embedding []float32, k int, filter map[string]string) ([]store.Result, error) {
	count := s.collection.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}

	// With a filter the candidate set can be smaller than k, which chromem
	// rejects; rank everything and filter here instead.
	nResults := k
	if nResults > count || len(filter) > 0 {
		nResults = count
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, nResults, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}

	out := make([]store.Result, 0, k)
	for _, r := range results {
		if !matchesFilter(r.Metadata, filter) {
			continue
		}
		out = append(out, store.Result{
			ID:         r.ID,
			Text:       r.Content,
			Metadata:   r.Metadata,
			Similarity: r.Similarity,
		})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// Count reports the number of persisted entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.collection.Count(), nil
}

// Model returns the embedding model the collection is pinned to.
func (s *Store) Model() string {
	return s.model
}

// DeleteCollection drops the collection from the database.
func (s *Store) DeleteCollection() error {
	if err := s.db.DeleteCollection(s.collection.Name); err != nil {
		return fmt.Errorf("failed to drop collection: %v", err)
	}
	if err := os.Remove(metaPath(s.dbPath)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func matchesFilter(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

func metaPath(dbPath string) string {
	return filepath.Join(dbPath, metaFileName)
}

func loadMeta(dbPath string) (collectionMeta, error) {
	var meta collectionMeta
	data, err := os.ReadFile(metaPath(dbPath))
	if err != nil {
		if os.IsNotExist(err) {
			return meta, fmt.Errorf("%w: %s", models.ErrNotFound, dbPath)
		}
		return meta, err
	}
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("failed to read collection metadata: %v", err)
	}
	return meta, nil
}

func (s *Store) saveMeta() error {
	data, err := yaml.Marshal(s.meta)
	if err != nil {
		return err
	}
	if err := os.WriteFile(metaPath(s.dbPath), data, 0o644); err != nil {
		return fmt.Errorf("failed to write collection metadata: %v", err)
	}
	log.Debug().Str("path", s.dbPath).Str("model", s.meta.EmbeddingModel).Int("dimension", s.meta.Dimension).Msg("Saved collection metadata")
	return nil
}
