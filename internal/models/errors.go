package models

import "errors"

// Document and pipeline error taxonomy. Per-document errors
// (ErrUnreadableDocument, ErrEmbeddingService) are contained by the
// indexing pipeline; configuration errors (ErrModelMismatch) abort the run
// before any write.
var (
	// ErrUnreadableDocument marks a file that could not be parsed
	// (corrupt, encrypted, unsupported format).
	ErrUnreadableDocument = errors.New("unreadable document")

	// ErrEmbeddingService marks an embedding batch that failed after
	// retries were exhausted.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrModelMismatch marks an attempt to use a persisted collection with
	// an embedding model different from the one it was created with.
	ErrModelMismatch = errors.New("embedding model mismatch")

	// ErrNoDocumentsFound means the indexing directory contained no
	// ingestible files.
	ErrNoDocumentsFound = errors.New("no documents found")

	// ErrNotFound means no persisted collection exists at the given path.
	ErrNotFound = errors.New("collection not found")

	// ErrCollectionExists means create was asked to initialize a path that
	// already holds a non-empty collection.
	ErrCollectionExists = errors.New("collection already exists")
)
