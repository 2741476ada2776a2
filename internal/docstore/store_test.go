package docstore_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"docstore/internal/docstore"

	"github.com/stretchr/testify/require"
)

func TestSavePDFRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := docstore.New(t.TempDir())
	require.NoError(t, err)

	content := []byte("%PDF-1.4 test")
	path, err := store.SavePDF(context.Background(), "doc1", content)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "doc1.pdf"), "unexpected path %q", path)

	got, err := store.PDFPath(context.Background(), "doc1")
	require.NoError(t, err)
	require.Equal(t, path, got)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	require.Equal(t, content, data)
}

func TestSavePDFOverwrites(t *testing.T) {
	t.Parallel()

	store, err := docstore.New(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	_, err = store.SavePDF(ctx, "doc1", []byte("first"))
	require.NoError(t, err)

	path, err := store.SavePDF(ctx, "doc1", []byte("second"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("second"), data)
}

func TestSaveEmptyContent(t *testing.T) {
	t.Parallel()

	store, err := docstore.New(t.TempDir())
	require.NoError(t, err)

	path, err := store.SavePDF(context.Background(), "empty", nil)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Zero(t, info.Size())
}

func TestImageLifecycle(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	store, err := docstore.New(base)
	require.NoError(t, err)

	ctx := context.Background()

	path3, err := store.SaveImage(ctx, "doc2", 3, []byte("page three"))
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path3, "doc2_p3.jpg"), "unexpected path %q", path3)

	_, err = store.SaveImage(ctx, "doc2", 7, []byte("page seven"))
	require.NoError(t, err)

	got, err := store.ImagePath(ctx, "doc2", 3)
	require.NoError(t, err)
	require.Equal(t, path3, got)

	require.NoError(t, store.DeleteDocument(ctx, "doc2"))

	_, err = store.ImagePath(ctx, "doc2", 3)
	require.ErrorIs(t, err, docstore.ErrImageNotFound)
	_, err = store.ImagePath(ctx, "doc2", 7)
	require.ErrorIs(t, err, docstore.ErrImageNotFound)
}

func TestDeleteLeavesOtherDocumentsAlone(t *testing.T) {
	t.Parallel()

	store, err := docstore.New(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	_, err = store.SaveImage(ctx, "doc", 1, []byte("mine"))
	require.NoError(t, err)
	// "doc1" shares "doc" as a string prefix but not the {id}_p file prefix.
	_, err = store.SaveImage(ctx, "doc1", 1, []byte("not mine"))
	require.NoError(t, err)

	require.NoError(t, store.DeleteDocument(ctx, "doc"))

	_, err = store.ImagePath(ctx, "doc1", 1)
	require.NoError(t, err, "deleting doc must not remove doc1's pages")
}

func TestDeleteIsIdempotent(t *testing.T) {
	t.Parallel()

	store, err := docstore.New(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.DeleteDocument(ctx, "never-saved"))
	require.NoError(t, store.DeleteDocument(ctx, "never-saved"))

	_, err = store.SavePDF(ctx, "doc1", []byte("data"))
	require.NoError(t, err)
	require.NoError(t, store.DeleteDocument(ctx, "doc1"))
	require.NoError(t, store.DeleteDocument(ctx, "doc1"))
}

func TestNotFoundSemantics(t *testing.T) {
	t.Parallel()

	store, err := docstore.New(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()

	_, err = store.PDFPath(ctx, "never_saved")
	require.ErrorIs(t, err, docstore.ErrPDFNotFound)

	_, err = store.SavePDF(ctx, "x", []byte("data"))
	require.NoError(t, err)
	require.NoError(t, store.DeleteDocument(ctx, "x"))

	_, err = store.PDFPath(ctx, "x")
	require.ErrorIs(t, err, docstore.ErrPDFNotFound)
}

func TestInvalidIDsRejected(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	store, err := docstore.New(base)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = store.SavePDF(ctx, "../escape", []byte("data"))
	require.ErrorIs(t, err, docstore.ErrInvalidDocID)

	_, err = store.PDFPath(ctx, "a/b")
	require.ErrorIs(t, err, docstore.ErrInvalidDocID)

	err = store.DeleteDocument(ctx, "")
	require.ErrorIs(t, err, docstore.ErrInvalidDocID)

	_, err = store.SaveImage(ctx, "doc", -1, []byte("data"))
	require.ErrorIs(t, err, docstore.ErrInvalidPage)

	// Nothing may have been written outside the two subdirectories.
	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	for _, entry := range entries {
		require.Contains(t, []string{"pdfs", "images"}, entry.Name())
	}
}

func TestConcurrentSavesSameID(t *testing.T) {
	t.Parallel()

	store, err := docstore.New(t.TempDir(), docstore.WithLockStripes(8))
	require.NoError(t, err)

	a := []byte(strings.Repeat("A", 1<<16))
	b := []byte(strings.Repeat("B", 1<<16))

	var wg sync.WaitGroup
	for _, content := range [][]byte{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.SavePDF(context.Background(), "contended", content)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	path, err := store.PDFPath(context.Background(), "contended")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// The winner is unspecified, but the stored bytes must be exactly one
	// of the two inputs, never an interleaving.
	if string(data) != string(a) && string(data) != string(b) {
		t.Fatalf("stored content is a mix of both writes (len=%d)", len(data))
	}
}

func TestConcurrentSavesManyDocuments(t *testing.T) {
	t.Parallel()

	store, err := docstore.New(t.TempDir(), docstore.WithLockStripes(16))
	require.NoError(t, err)

	const docs = 32
	var wg sync.WaitGroup
	for i := range docs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := "doc-" + strings.Repeat("x", i%5) + string(rune('a'+i%26))
			_, err := store.SavePDF(context.Background(), id, []byte{byte(i)})
			require.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestNewFailsOnBadBasePath(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	// A regular file where a directory is needed.
	blocker := filepath.Join(base, "blocked")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := docstore.New(blocker)
	require.Error(t, err)

	var opErr *docstore.OpError
	require.ErrorAs(t, err, &opErr)
	require.Equal(t, "init storage", opErr.Op)
}
