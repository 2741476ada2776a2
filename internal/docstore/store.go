package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Store persists PDF and page-image blobs on the local filesystem.
//
// Every mutating operation on a document is serialized through a striped
// lock table, so two concurrent saves (or a save and a delete) of the same
// id never interleave. Path lookups deliberately skip the lock: a reader
// racing a writer may observe a file that is about to appear or disappear,
// a trade the callers accept in exchange for lock-free reads.
type Store struct {
	layout Layout
	locks  *lockTable
}

type options struct {
	lockStripes int
}

// Option configures a Store.
type Option func(*options)

// WithLockStripes overrides the size of the striped lock table.
func WithLockStripes(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.lockStripes = n
		}
	}
}

// New creates a Store rooted at basePath, creating the pdfs/ and images/
// subdirectories if they do not exist yet.
func New(basePath string, opts ...Option) (*Store, error) {
	o := options{lockStripes: DefaultLockStripes}
	for _, opt := range opts {
		opt(&o)
	}

	layout := NewLayout(basePath)
	for _, dir := range []string{layout.PDFDir(), layout.ImageDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &OpError{Op: "init storage", Err: err}
		}
		slog.Info("Storage directory ensured", "dir", dir)
	}

	return &Store{layout: layout, locks: newLockTable(o.lockStripes)}, nil
}

// SavePDF writes content to the canonical PDF location for docID, creating
// or replacing the file, and returns the path written. Re-saving the same
// id is last-write-wins; there is no versioning.
func (s *Store) SavePDF(ctx context.Context, docID string, content []byte) (string, error) {
	if err := ValidateDocID(docID); err != nil {
		return "", &OpError{Op: "save pdf", DocID: docID, Err: err}
	}

	release, err := s.locks.acquire(ctx, docID)
	if err != nil {
		return "", &OpError{Op: "save pdf", DocID: docID, Err: err}
	}
	defer release()

	path := s.layout.PDFPath(docID)
	if err := writeFileAtomic(path, content); err != nil {
		return "", &OpError{Op: "save pdf", DocID: docID, Err: err}
	}

	slog.Info("PDF saved", "doc_id", docID, "path", path, "size", len(content))
	return path, nil
}

// SaveImage writes content to the canonical page-image location for
// (docID, page) with the same contract as SavePDF.
func (s *Store) SaveImage(ctx context.Context, docID string, page int, content []byte) (string, error) {
	if err := ValidateDocID(docID); err != nil {
		return "", &OpError{Op: "save image", DocID: docID, Err: err}
	}
	if err := validatePage(page); err != nil {
		return "", &OpError{Op: "save image", DocID: docID, Err: err}
	}

	release, err := s.locks.acquire(ctx, docID)
	if err != nil {
		return "", &OpError{Op: "save image", DocID: docID, Err: err}
	}
	defer release()

	path := s.layout.ImagePath(docID, page)
	if err := writeFileAtomic(path, content); err != nil {
		return "", &OpError{Op: "save image", DocID: docID, Err: err}
	}

	slog.Info("Image saved", "doc_id", docID, "page", page, "path", path, "size", len(content))
	return path, nil
}

// PDFPath returns the path of the PDF stored for docID, or ErrPDFNotFound
// if no such file exists. It does not take the stripe lock, so a result may
// be stale with respect to a concurrent save or delete.
func (s *Store) PDFPath(ctx context.Context, docID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := ValidateDocID(docID); err != nil {
		return "", &OpError{Op: "get pdf path", DocID: docID, Err: err}
	}

	path := s.layout.PDFPath(docID)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("PDF not found", "doc_id", docID, "path", path)
			return "", fmt.Errorf("%w: %s", ErrPDFNotFound, docID)
		}
		return "", &OpError{Op: "get pdf path", DocID: docID, Err: err}
	}

	return path, nil
}

// ImagePath returns the path of the page image stored for (docID, page), or
// ErrImageNotFound if no such file exists.
func (s *Store) ImagePath(ctx context.Context, docID string, page int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := ValidateDocID(docID); err != nil {
		return "", &OpError{Op: "get image path", DocID: docID, Err: err}
	}
	if err := validatePage(page); err != nil {
		return "", &OpError{Op: "get image path", DocID: docID, Err: err}
	}

	path := s.layout.ImagePath(docID, page)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("Image not found", "doc_id", docID, "page", page, "path", path)
			return "", fmt.Errorf("%w: %s page %d", ErrImageNotFound, docID, page)
		}
		return "", &OpError{Op: "get image path", DocID: docID, Err: err}
	}

	return path, nil
}

// DeleteDocument removes the PDF and every page image stored for docID.
// Deleting a document that has no stored blobs is a successful no-op, so
// the operation is idempotent. On error some images may already have been
// removed; nothing is rolled back.
func (s *Store) DeleteDocument(ctx context.Context, docID string) error {
	if err := ValidateDocID(docID); err != nil {
		return &OpError{Op: "delete document", DocID: docID, Err: err}
	}

	release, err := s.locks.acquire(ctx, docID)
	if err != nil {
		return &OpError{Op: "delete document", DocID: docID, Err: err}
	}
	defer release()

	pdfPath := s.layout.PDFPath(docID)
	if err := os.Remove(pdfPath); err != nil && !os.IsNotExist(err) {
		return &OpError{Op: "delete document", DocID: docID, Err: err}
	}

	// Linear scan of the whole image directory; the naming convention
	// {docID}_p{page}.jpg is the only record of which pages exist.
	entries, err := os.ReadDir(s.layout.ImageDir())
	if err != nil {
		return &OpError{Op: "delete document", DocID: docID, Err: err}
	}

	prefix := imagePrefix(docID)
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".jpg") {
			continue
		}
		if err := os.Remove(filepath.Join(s.layout.ImageDir(), name)); err != nil {
			return &OpError{Op: "delete document", DocID: docID, Err: err}
		}
		slog.Info("Deleted page image", "doc_id", docID, "file", name)
	}

	slog.Info("Document deleted", "doc_id", docID)
	return nil
}
