// Package catalog keeps the relational record of ingested documents: which
// documents exist, how far through the pipeline they are, and which page
// images have been produced for them. The blob payloads themselves live in
// the file store; the catalog only tracks metadata.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Document lifecycle states. A document moves strictly forward:
// created -> processed -> indexed.
const (
	StatusCreated   = "created"
	StatusProcessed = "processed"
	StatusIndexed   = "indexed"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrExists        = errors.New("document already exists")
	ErrBadTransition = errors.New("invalid status transition")
)

// validTransitions maps a status to the statuses reachable from it.
var validTransitions = map[string][]string{
	StatusCreated:   {StatusProcessed},
	StatusProcessed: {StatusIndexed},
	StatusIndexed:   {},
}

// Document is a catalog record. ProcessedAt and IndexedAt are nil until the
// corresponding transition happens.
type Document struct {
	ID          string     `json:"id"`
	FileName    string     `json:"file_name"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	IndexedAt   *time.Time `json:"indexed_at,omitempty"`
	Pages       []Page     `json:"pages,omitempty"`
}

// Page records one converted page image of a document.
type Page struct {
	ID         string `json:"id"`
	DocID      string `json:"doc_id"`
	PageNumber int    `json:"page_number"`
	ImagePath  string `json:"image_path"`
}

// Summary is the minimal listing view of a document.
type Summary struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	Status   string `json:"status"`
}

// Catalog is a SQLite-backed document/page metadata store.
type Catalog struct {
	db *sql.DB
}

// Open opens (or creates) the catalog database at dbPath and ensures the
// schema exists.
func Open(dbPath string) (*Catalog, error) {
	// Foreign keys are per-connection in SQLite, so enable them in the DSN
	// rather than relying on a PRAGMA against a pooled connection.
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Catalog{db: db}, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			file_name TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			processed_at TIMESTAMP,
			indexed_at TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS pages (
			id TEXT PRIMARY KEY,
			doc_id TEXT NOT NULL,
			page_number INTEGER NOT NULL,
			image_path TEXT NOT NULL,
			UNIQUE(doc_id, page_number),
			FOREIGN KEY(doc_id) REFERENCES documents(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_pages_doc ON pages(doc_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// CreateDocument inserts a new record in the "created" state.
func (c *Catalog) CreateDocument(ctx context.Context, id, fileName string) (Document, error) {
	now := time.Now().UTC()

	res, err := c.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO documents(id, file_name, status, created_at) VALUES(?, ?, ?, ?)`,
		id, fileName, StatusCreated, now,
	)
	if err != nil {
		return Document{}, fmt.Errorf("create document %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err == nil && rows == 0 {
		return Document{}, fmt.Errorf("create document %s: %w", id, ErrExists)
	}

	return Document{ID: id, FileName: fileName, Status: StatusCreated, CreatedAt: now}, nil
}

// GetDocument returns the record for id including its pages.
func (c *Catalog) GetDocument(ctx context.Context, id string) (Document, error) {
	var (
		doc         Document
		processedAt sql.NullTime
		indexedAt   sql.NullTime
	)

	err := c.db.QueryRowContext(ctx,
		`SELECT id, file_name, status, created_at, processed_at, indexed_at
		 FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.FileName, &doc.Status, &doc.CreatedAt, &processedAt, &indexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("get document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document %s: %w", id, err)
	}

	if processedAt.Valid {
		t := processedAt.Time
		doc.ProcessedAt = &t
	}
	if indexedAt.Valid {
		t := indexedAt.Time
		doc.IndexedAt = &t
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT id, doc_id, page_number, image_path FROM pages
		 WHERE doc_id = ? ORDER BY page_number`, id,
	)
	if err != nil {
		return Document{}, fmt.Errorf("get document %s pages: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Page
		if err := rows.Scan(&p.ID, &p.DocID, &p.PageNumber, &p.ImagePath); err != nil {
			return Document{}, fmt.Errorf("scan page for %s: %w", id, err)
		}
		doc.Pages = append(doc.Pages, p)
	}
	if err := rows.Err(); err != nil {
		return Document{}, fmt.Errorf("get document %s pages: %w", id, err)
	}

	return doc, nil
}

// ListDocuments returns the minimal view of every document, ordered by id.
func (c *Catalog) ListDocuments(ctx context.Context) ([]Summary, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, file_name, status FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.FileName, &s.Status); err != nil {
			return nil, fmt.Errorf("scan document summary: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	return out, nil
}

// SetStatus advances the document to status, stamping processed_at or
// indexed_at as appropriate. Transitions other than created->processed and
// processed->indexed are rejected with ErrBadTransition.
func (c *Catalog) SetStatus(ctx context.Context, id, status string) (Document, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return Document{}, fmt.Errorf("set status %s: %w", id, err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM documents WHERE id = ?`, id,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("set status %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("set status %s: %w", id, err)
	}

	allowed, ok := validTransitions[current]
	if !ok {
		return Document{}, fmt.Errorf("set status %s: unknown current status %q", id, current)
	}
	permitted := false
	for _, next := range allowed {
		if next == status {
			permitted = true
			break
		}
	}
	if !permitted {
		return Document{}, fmt.Errorf("set status %s: %s -> %s: %w", id, current, status, ErrBadTransition)
	}

	now := time.Now().UTC()
	var stamp string
	switch status {
	case StatusProcessed:
		stamp = "processed_at"
	case StatusIndexed:
		stamp = "indexed_at"
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET status = ?, `+stamp+` = ? WHERE id = ?`,
		status, now, id,
	); err != nil {
		return Document{}, fmt.Errorf("set status %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return Document{}, fmt.Errorf("set status %s: %w", id, err)
	}

	return c.GetDocument(ctx, id)
}

// AddPage records a converted page image for a document, replacing any
// earlier record for the same page number.
func (c *Catalog) AddPage(ctx context.Context, docID string, pageNumber int, imagePath string) (Page, error) {
	page := Page{
		ID:         uuid.NewString(),
		DocID:      docID,
		PageNumber: pageNumber,
		ImagePath:  imagePath,
	}

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO pages(id, doc_id, page_number, image_path)
		 VALUES(?, ?, ?, ?)
		 ON CONFLICT(doc_id, page_number) DO UPDATE SET
		 	id=excluded.id,
		 	image_path=excluded.image_path`,
		page.ID, page.DocID, page.PageNumber, page.ImagePath,
	)
	if err != nil {
		return Page{}, fmt.Errorf("add page %d for %s: %w", pageNumber, docID, err)
	}

	return page, nil
}

// DeleteDocument removes the record and its pages. Deleting an unknown id
// is a no-op.
func (c *Catalog) DeleteDocument(ctx context.Context, id string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}
