// Package postgres persists harvested documents and chunks to PostgreSQL
// using pgx connection pools.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hklex/lexharvest/internal/chunk"
	"github.com/hklex/lexharvest/internal/storage"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// execCloser is the subset of pgxpool.Pool the store needs. It exists so
// tests can substitute a pgxmock pool.
type execCloser interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// DocumentStoreConfig configures the PostgreSQL document store.
type DocumentStoreConfig struct {
	DSN             string
	DocumentTable   string
	ChunkTable      string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// DocumentStore writes documents and chunks to PostgreSQL.
type DocumentStore struct {
	pool     execCloser
	docTable string
	chTable  string
	log      *zap.Logger
}

// NewDocumentStore opens a connection pool and returns a store.
func NewDocumentStore(ctx context.Context, cfg DocumentStoreConfig, log *zap.Logger) (*DocumentStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres: DSN is required")
	}
	if cfg.DocumentTable == "" {
		cfg.DocumentTable = "documents"
	}
	if cfg.ChunkTable == "" {
		cfg.ChunkTable = "chunks"
	}
	if !validTableName.MatchString(cfg.DocumentTable) {
		return nil, fmt.Errorf("postgres: invalid document table name %q", cfg.DocumentTable)
	}
	if !validTableName.MatchString(cfg.ChunkTable) {
		return nil, fmt.Errorf("postgres: invalid chunk table name %q", cfg.ChunkTable)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &DocumentStore{pool: pool, docTable: cfg.DocumentTable, chTable: cfg.ChunkTable, log: log}, nil
}

// NewDocumentStoreWithPool wraps an existing pool. Intended for tests.
func NewDocumentStoreWithPool(pool execCloser, docTable, chunkTable string, log *zap.Logger) (*DocumentStore, error) {
	if docTable == "" {
		docTable = "documents"
	}
	if chunkTable == "" {
		chunkTable = "chunks"
	}
	if !validTableName.MatchString(docTable) {
		return nil, fmt.Errorf("postgres: invalid document table name %q", docTable)
	}
	if !validTableName.MatchString(chunkTable) {
		return nil, fmt.Errorf("postgres: invalid chunk table name %q", chunkTable)
	}
	return &DocumentStore{pool: pool, docTable: docTable, chTable: chunkTable, log: log}, nil
}

// Close releases the connection pool.
func (s *DocumentStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// SaveDocument upserts a document keyed by its natural identifier and
// returns the persisted row id. A new id is minted when the caller left it
// blank; when the natural key already exists the row keeps its original id,
// which is what the query returns.
func (s *DocumentStore) SaveDocument(ctx context.Context, doc storage.Document) (string, error) {
	if s == nil || s.pool == nil {
		return "", fmt.Errorf("postgres: store is not initialized")
	}
	if doc.NaturalKey == "" {
		return "", fmt.Errorf("postgres: document has no natural key")
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	payload, err := json.Marshal(doc.Payload)
	if err != nil {
		return "", fmt.Errorf("postgres: marshal payload: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(id, doc_type, natural_key, source_url, scraped_at, blob_uri, word_count, language, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (natural_key) DO UPDATE SET
			source_url = EXCLUDED.source_url,
			scraped_at = EXCLUDED.scraped_at,
			blob_uri = EXCLUDED.blob_uri,
			word_count = EXCLUDED.word_count,
			language = EXCLUDED.language,
			payload = EXCLUDED.payload
		RETURNING id`, s.docTable)

	var id string
	if err := s.pool.QueryRow(ctx, query,
		doc.ID, doc.DocType, doc.NaturalKey, doc.SourceURL, doc.ScrapedAt,
		doc.BlobURI, doc.WordCount, doc.Language, payload,
	).Scan(&id); err != nil {
		return "", fmt.Errorf("postgres: save document %s: %w", doc.NaturalKey, err)
	}

	if s.log != nil {
		s.log.Debug("document saved",
			zap.String("natural_key", doc.NaturalKey),
			zap.String("doc_type", doc.DocType),
		)
	}
	return id, nil
}

// SaveChunks replaces the chunks of one document. Existing rows for the
// document are deleted first so a re-harvest that produces fewer chunks
// leaves no stale rows behind.
func (s *DocumentStore) SaveChunks(ctx context.Context, docID string, chunks []chunk.Chunk) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("postgres: store is not initialized")
	}
	if docID == "" {
		return fmt.Errorf("postgres: chunks have no document id")
	}

	del := fmt.Sprintf(`DELETE FROM %s WHERE doc_id = $1`, s.chTable)
	if _, err := s.pool.Exec(ctx, del, docID); err != nil {
		return fmt.Errorf("postgres: clear chunks of %s: %w", docID, err)
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(id, doc_id, chunk_index, chunk_type, section_path, paragraph_numbers, text)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, s.chTable)

	for _, c := range chunks {
		paras, err := json.Marshal(c.ParagraphNumbers)
		if err != nil {
			return fmt.Errorf("postgres: marshal paragraph numbers: %w", err)
		}
		if _, err := s.pool.Exec(ctx, query,
			uuid.NewString(), docID, c.ChunkIndex, c.ChunkType, c.SectionPath, paras, c.Text,
		); err != nil {
			return fmt.Errorf("postgres: save chunk %d of %s: %w", c.ChunkIndex, docID, err)
		}
	}

	if s.log != nil {
		s.log.Debug("chunks saved", zap.String("doc_id", docID), zap.Int("count", len(chunks)))
	}
	return nil
}
