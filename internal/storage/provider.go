// Package storage defines the persistence contracts for harvested documents
// and their chunks, with no-op implementations for dry runs.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/hklex/lexharvest/internal/chunk"
)

// Document is the persisted form of one scraped item. Payload carries the
// full parsed record and is stored as JSON.
type Document struct {
	ID         string
	DocType    string
	NaturalKey string
	SourceURL  string
	ScrapedAt  time.Time
	BlobURI    string
	WordCount  int
	Language   string
	Payload    any
}

// DocumentStore persists documents and their chunks idempotently: documents
// keyed by natural identifier, chunks by (document id, chunk index).
type DocumentStore interface {
	SaveDocument(ctx context.Context, doc Document) (string, error)
	SaveChunks(ctx context.Context, docID string, chunks []chunk.Chunk) error
	Close()
}

// BlobStore archives raw artifacts (HTML pages, PDFs) and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path, contentType string, r io.Reader) (string, error)
}

// NoopDocumentStore discards everything. Used when no DSN is configured.
type NoopDocumentStore struct{}

func (NoopDocumentStore) SaveDocument(_ context.Context, doc Document) (string, error) {
	return doc.ID, nil
}

func (NoopDocumentStore) SaveChunks(context.Context, string, []chunk.Chunk) error { return nil }

func (NoopDocumentStore) Close() {}

// NoopBlobStore discards artifacts and returns an empty URI.
type NoopBlobStore struct{}

func (NoopBlobStore) PutObject(_ context.Context, _, _ string, r io.Reader) (string, error) {
	_, err := io.Copy(io.Discard, r)
	return "", err
}
