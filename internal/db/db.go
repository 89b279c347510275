// Package db is the alternative vector store backend: Postgres with the
// pgvector extension, for deployments that already run a database server.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
	"pdf-rag/internal/store"
)

// Document is one persisted fragment row.
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID           int64           `bun:"id,pk,autoincrement"`
	Content      string          `bun:"content,notnull"`
	Source       string          `bun:"source,notnull"`
	Page         int             `bun:"page,notnull"`
	DocumentType string          `bun:"document_type"`
	Region       string          `bun:"region"`
	Embedding    pgvector.Vector `bun:"embedding,notnull,type:vector"`

	Distance float64 `bun:"distance,scanonly"`
}

// filterColumns maps metadata filter keys to table columns. Unknown keys
// match nothing.
var filterColumns = map[string]string{
	models.MetaSource:      "source",
	models.MetaPage:        "page",
	models.TagDocumentType: "document_type",
	models.TagRegion:       "region",
}

func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
	if cfg.Password != "" {
		opts = append(opts, pgdriver.WithPassword(cfg.Password))
	}
	return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// InitDB creates the documents table with a fixed-dimensionality vector
// column. The dimensionality is part of the schema, so a different
// embedding model cannot be mixed in later without a migration.
func InitDB(ctx context.Context, db *bun.DB, vectorSize int) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS documents (
		id BIGSERIAL PRIMARY KEY,
		content TEXT NOT NULL,
		source TEXT NOT NULL,
		page INTEGER NOT NULL,
		document_type TEXT,
		region TEXT,
		embedding vector(%d) NOT NULL
	)`, vectorSize))
	return err
}

// DropDocuments removes the documents table.
func DropDocuments(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*Document)(nil)).IfExists().Exec(ctx)
	return err
}

// PGStore implements the vector store contract over Postgres + pgvector.
type PGStore struct {
	db         *bun.DB
	vectorSize int
}

func NewPGStore(db *bun.DB, vectorSize int) *PGStore {
	return &PGStore{db: db, vectorSize: vectorSize}
}

// Insert appends the embedded fragments inside one transaction, so a
// document either fully commits or not at all.
func (s *PGStore) Insert(ctx context.Context, fragments []models.Fragment) (int, error) {
	if len(fragments) == 0 {
		return 0, nil
	}
	docs := make([]Document, 0, len(fragments))
	for _, f := range fragments {
		if s.vectorSize != 0 && len(f.Embedding) != s.vectorSize {
			return 0, fmt.Errorf("%w: table holds %d-dimensional vectors, insert has %d",
				models.ErrModelMismatch, s.vectorSize, len(f.Embedding))
		}
		docs = append(docs, Document{
			Content:      f.Text,
			Source:       f.Source,
			Page:         f.Page,
			DocumentType: f.Tags[models.TagDocumentType],
			Region:       f.Tags[models.TagRegion],
			Embedding:    pgvector.NewVector(f.Embedding),
		})
	}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&docs).Exec(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to store documents: %v", err)
	}
	return len(docs), nil
}

// Query ranks rows by cosine distance and maps them back to results with
// a descending similarity score.
func (s *PGStore) Query(ctx context.Context, embedding []float32, k int, filter map[string]string) ([]store.Result, error) {
	if k <= 0 {
		return nil, nil
	}
	var docs []Document
	q := s.db.NewSelect().
		Model(&docs).
		ColumnExpr("d.*").
		ColumnExpr("embedding <=> ? AS distance", pgvector.NewVector(embedding))
	for key, value := range filter {
		col, ok := filterColumns[key]
		if !ok {
			return nil, nil
		}
		q = q.Where("? = ?", bun.Ident(col), value)
	}
	err := q.OrderExpr("distance ASC").Limit(k).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %v", err)
	}

	results := make([]store.Result, 0, len(docs))
	for _, d := range docs {
		results = append(results, store.Result{
			ID:         strconv.FormatInt(d.ID, 10),
			Text:       d.Content,
			Metadata:   rowMetadata(d),
			Similarity: float32(1 - d.Distance),
		})
	}
	return results, nil
}

func (s *PGStore) Count(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*Document)(nil)).Count(ctx)
}

func rowMetadata(d Document) map[string]string {
	md := map[string]string{
		models.MetaSource: d.Source,
		models.MetaPage:   strconv.Itoa(d.Page),
	}
	if d.DocumentType != "" {
		md[models.TagDocumentType] = d.DocumentType
	}
	if d.Region != "" {
		md[models.TagRegion] = d.Region
	}
	return md
}
