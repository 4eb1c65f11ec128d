package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Document is a retrievable knowledge passage.
type Document struct {
	ID        string    `json:"id"`
	Source    string    `json:"source,omitempty"`
	Content   string    `json:"content"`
	Metadata  string    `json:"metadata,omitempty"` // JSON blob
	CreatedAt time.Time `json:"createdAt"`
	Rank      float64   `json:"rank,omitempty"` // FTS5 rank (search results only)
}

// DocumentStore manages knowledge passages with full-text search via
// SQLite FTS5. It backs the local retrieval fallback when no external
// retrieval service is configured.
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a document store using the given database.
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Store inserts or updates a document.
func (d *DocumentStore) Store(doc Document) (*Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	doc.CreatedAt = time.Now()

	_, err := d.db.sql.Exec(
		`INSERT INTO documents (id, source, content, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   source = excluded.source,
		   content = excluded.content,
		   metadata = excluded.metadata`,
		doc.ID, doc.Source, doc.Content,
		nullableString(doc.Metadata),
		doc.CreatedAt.UTC().Format(time.DateTime),
	)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Search finds documents matching the query using FTS5, ranked by
// relevance. Limit of 0 defaults to 10.
func (d *DocumentStore) Search(query string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := d.db.sql.Query(
		`SELECT doc.id, doc.source, doc.content, doc.metadata, doc.created_at, rank
		 FROM documents_fts
		 JOIN documents doc ON doc.rowid = documents_fts.rowid
		 WHERE documents_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		query, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// Delete removes a document by ID.
func (d *DocumentStore) Delete(id string) error {
	_, err := d.db.sql.Exec(`DELETE FROM documents WHERE id = ?`, id)
	return err
}

// Count returns the number of stored documents.
func (d *DocumentStore) Count() (int, error) {
	var n int
	err := d.db.sql.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

func scanDocuments(rows *sql.Rows) ([]Document, error) {
	var docs []Document
	for rows.Next() {
		var doc Document
		var metadata sql.NullString
		var createdAt string

		if err := rows.Scan(&doc.ID, &doc.Source, &doc.Content, &metadata, &createdAt, &doc.Rank); err != nil {
			continue
		}
		if metadata.Valid {
			doc.Metadata = metadata.String
		}
		doc.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
