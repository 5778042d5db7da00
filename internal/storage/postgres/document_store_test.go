package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hklex/lexharvest/internal/chunk"
	"github.com/hklex/lexharvest/internal/storage"
)

func testDocument() storage.Document {
	return storage.Document{
		ID:         "11111111-1111-1111-1111-111111111111",
		DocType:    "case",
		NaturalKey: "[1997] HKCFA 12",
		SourceURL:  "https://lrs.test/judgment?DIS=123",
		ScrapedAt:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		BlobURI:    "file:///tmp/blobs/ab/cd.html",
		WordCount:  1200,
		Language:   "en",
		Payload:    map[string]string{"caseNumber": "FACC1/1997"},
	}
}

func TestSaveDocumentUpserts(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDocumentStoreWithPool(mock, "documents", "chunks", zap.NewNop())
	require.NoError(t, err)

	doc := testDocument()
	payload, err := json.Marshal(doc.Payload)
	require.NoError(t, err)

	mock.ExpectQuery("INSERT INTO documents").
		WithArgs(doc.ID, doc.DocType, doc.NaturalKey, doc.SourceURL, doc.ScrapedAt,
			doc.BlobURI, doc.WordCount, doc.Language, payload).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(doc.ID))

	id, err := store.SaveDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A re-harvest of a known natural key hits the conflict arm, and the row
// keeps its original id. The store must report that id, not the one it
// minted for the attempted insert, so that chunks land under the real row.
func TestSaveDocumentReturnsExistingIDOnConflict(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDocumentStoreWithPool(mock, "documents", "chunks", zap.NewNop())
	require.NoError(t, err)

	doc := testDocument()
	doc.ID = ""

	const existingID = "22222222-2222-2222-2222-222222222222"
	mock.ExpectQuery("INSERT INTO documents").
		WithArgs(pgxmock.AnyArg(), doc.DocType, doc.NaturalKey, doc.SourceURL, doc.ScrapedAt,
			doc.BlobURI, doc.WordCount, doc.Language, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(existingID))

	id, err := store.SaveDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, existingID, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveDocumentMintsID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDocumentStoreWithPool(mock, "", "", zap.NewNop())
	require.NoError(t, err)

	doc := testDocument()
	doc.ID = ""

	mock.ExpectQuery("INSERT INTO documents").
		WithArgs(pgxmock.AnyArg(), doc.DocType, doc.NaturalKey, doc.SourceURL, doc.ScrapedAt,
			doc.BlobURI, doc.WordCount, doc.Language, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("33333333-3333-3333-3333-333333333333"))

	id, err := store.SaveDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveDocumentRequiresNaturalKey(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDocumentStoreWithPool(mock, "documents", "chunks", zap.NewNop())
	require.NoError(t, err)

	doc := testDocument()
	doc.NaturalKey = ""

	_, err = store.SaveDocument(context.Background(), doc)
	assert.ErrorContains(t, err, "natural key")
}

func TestSaveDocumentExecError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDocumentStoreWithPool(mock, "documents", "chunks", zap.NewNop())
	require.NoError(t, err)

	mock.ExpectQuery("INSERT INTO documents").
		WillReturnError(errors.New("connection refused"))

	_, err = store.SaveDocument(context.Background(), testDocument())
	assert.ErrorContains(t, err, "connection refused")
}

func TestSaveChunks(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDocumentStoreWithPool(mock, "documents", "chunks", zap.NewNop())
	require.NoError(t, err)

	chunks := []chunk.Chunk{
		{ChunkIndex: 0, ChunkType: "facts", ParagraphNumbers: []int{1, 2}, Text: "para one para two"},
		{ChunkIndex: 1, ChunkType: "reasoning", ParagraphNumbers: []int{3}, Text: "para three"},
	}

	mock.ExpectExec("DELETE FROM chunks").
		WithArgs("doc-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	for _, c := range chunks {
		paras, err := json.Marshal(c.ParagraphNumbers)
		require.NoError(t, err)
		mock.ExpectExec("INSERT INTO chunks").
			WithArgs(pgxmock.AnyArg(), "doc-1", c.ChunkIndex, c.ChunkType, c.SectionPath, paras, c.Text).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	require.NoError(t, store.SaveChunks(context.Background(), "doc-1", chunks))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Re-saving with fewer chunks must not leave rows from the earlier, longer
// set behind, so the old rows are cleared before the insert loop runs.
func TestSaveChunksClearsPreviousRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDocumentStoreWithPool(mock, "documents", "chunks", zap.NewNop())
	require.NoError(t, err)

	chunks := []chunk.Chunk{
		{ChunkIndex: 0, ChunkType: "facts", ParagraphNumbers: []int{1}, Text: "para one"},
	}
	paras, err := json.Marshal(chunks[0].ParagraphNumbers)
	require.NoError(t, err)

	mock.ExpectExec("DELETE FROM chunks").
		WithArgs("doc-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 5))
	mock.ExpectExec("INSERT INTO chunks").
		WithArgs(pgxmock.AnyArg(), "doc-1", 0, "facts", "", paras, "para one").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.SaveChunks(context.Background(), "doc-1", chunks))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveChunksRequiresDocID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDocumentStoreWithPool(mock, "documents", "chunks", zap.NewNop())
	require.NoError(t, err)

	err = store.SaveChunks(context.Background(), "", nil)
	assert.ErrorContains(t, err, "document id")
}

func TestInvalidTableNameRejected(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewDocumentStoreWithPool(mock, "documents; DROP TABLE documents", "chunks", zap.NewNop())
	assert.ErrorContains(t, err, "invalid document table name")

	_, err = NewDocumentStoreWithPool(mock, "documents", "chunks--", zap.NewNop())
	assert.ErrorContains(t, err, "invalid chunk table name")
}

func TestNilStoreGuards(t *testing.T) {
	t.Parallel()

	var store *DocumentStore
	store.Close()

	_, err := store.SaveDocument(context.Background(), testDocument())
	assert.ErrorContains(t, err, "not initialized")

	err = store.SaveChunks(context.Background(), "doc-1", nil)
	assert.ErrorContains(t, err, "not initialized")
}
