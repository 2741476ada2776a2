package catalog_test

import (
	"context"
	"path/filepath"
	"testing"

	"docstore/internal/catalog"

	"github.com/stretchr/testify/require"
)

func openCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	c, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCreateAndGetDocument(t *testing.T) {
	t.Parallel()

	c := openCatalog(t)
	ctx := context.Background()

	doc, err := c.CreateDocument(ctx, "doc1", "report.pdf")
	require.NoError(t, err)
	require.Equal(t, catalog.StatusCreated, doc.Status)

	got, err := c.GetDocument(ctx, "doc1")
	require.NoError(t, err)
	require.Equal(t, "doc1", got.ID)
	require.Equal(t, "report.pdf", got.FileName)
	require.Equal(t, catalog.StatusCreated, got.Status)
	require.Nil(t, got.ProcessedAt)
	require.Nil(t, got.IndexedAt)
	require.Empty(t, got.Pages)
}

func TestCreateDuplicateFails(t *testing.T) {
	t.Parallel()

	c := openCatalog(t)
	ctx := context.Background()

	_, err := c.CreateDocument(ctx, "doc1", "a.pdf")
	require.NoError(t, err)

	_, err = c.CreateDocument(ctx, "doc1", "b.pdf")
	require.ErrorIs(t, err, catalog.ErrExists)
}

func TestGetUnknownDocument(t *testing.T) {
	t.Parallel()

	c := openCatalog(t)

	_, err := c.GetDocument(context.Background(), "missing")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestStatusTransitions(t *testing.T) {
	t.Parallel()

	c := openCatalog(t)
	ctx := context.Background()

	_, err := c.CreateDocument(ctx, "doc1", "a.pdf")
	require.NoError(t, err)

	// created -> indexed skips a state and must fail.
	_, err = c.SetStatus(ctx, "doc1", catalog.StatusIndexed)
	require.ErrorIs(t, err, catalog.ErrBadTransition)

	doc, err := c.SetStatus(ctx, "doc1", catalog.StatusProcessed)
	require.NoError(t, err)
	require.Equal(t, catalog.StatusProcessed, doc.Status)
	require.NotNil(t, doc.ProcessedAt)
	require.Nil(t, doc.IndexedAt)

	// No going back.
	_, err = c.SetStatus(ctx, "doc1", catalog.StatusProcessed)
	require.ErrorIs(t, err, catalog.ErrBadTransition)

	doc, err = c.SetStatus(ctx, "doc1", catalog.StatusIndexed)
	require.NoError(t, err)
	require.Equal(t, catalog.StatusIndexed, doc.Status)
	require.NotNil(t, doc.IndexedAt)

	// Indexed is terminal.
	_, err = c.SetStatus(ctx, "doc1", catalog.StatusProcessed)
	require.ErrorIs(t, err, catalog.ErrBadTransition)
}

func TestSetStatusUnknownDocument(t *testing.T) {
	t.Parallel()

	c := openCatalog(t)

	_, err := c.SetStatus(context.Background(), "missing", catalog.StatusProcessed)
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestAddPageAndCascadeDelete(t *testing.T) {
	t.Parallel()

	c := openCatalog(t)
	ctx := context.Background()

	_, err := c.CreateDocument(ctx, "doc1", "a.pdf")
	require.NoError(t, err)

	p3, err := c.AddPage(ctx, "doc1", 3, "/data/images/doc1_p3.jpg")
	require.NoError(t, err)
	require.NotEmpty(t, p3.ID)

	_, err = c.AddPage(ctx, "doc1", 7, "/data/images/doc1_p7.jpg")
	require.NoError(t, err)

	// Replacing an existing page number keeps a single record.
	_, err = c.AddPage(ctx, "doc1", 3, "/data/images/doc1_p3_v2.jpg")
	require.NoError(t, err)

	doc, err := c.GetDocument(ctx, "doc1")
	require.NoError(t, err)
	require.Len(t, doc.Pages, 2)
	require.Equal(t, 3, doc.Pages[0].PageNumber)
	require.Equal(t, "/data/images/doc1_p3_v2.jpg", doc.Pages[0].ImagePath)
	require.Equal(t, 7, doc.Pages[1].PageNumber)

	require.NoError(t, c.DeleteDocument(ctx, "doc1"))
	_, err = c.GetDocument(ctx, "doc1")
	require.ErrorIs(t, err, catalog.ErrNotFound)

	// Deleting again is a no-op.
	require.NoError(t, c.DeleteDocument(ctx, "doc1"))
}

func TestListDocuments(t *testing.T) {
	t.Parallel()

	c := openCatalog(t)
	ctx := context.Background()

	list, err := c.ListDocuments(ctx)
	require.NoError(t, err)
	require.Empty(t, list)

	_, err = c.CreateDocument(ctx, "b-doc", "b.pdf")
	require.NoError(t, err)
	_, err = c.CreateDocument(ctx, "a-doc", "a.pdf")
	require.NoError(t, err)

	list, err = c.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "a-doc", list[0].ID)
	require.Equal(t, "b-doc", list[1].ID)
}
