package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStripeDeterminism(t *testing.T) {
	t.Parallel()

	table := newLockTable(64)
	for _, id := range []string{"doc1", "doc2", "a-much-longer-document-identifier"} {
		first := table.stripe(id)
		for range 10 {
			require.Same(t, first, table.stripe(id), "stripe for %q must be stable", id)
		}
	}
}

func TestStripeSerializesSameID(t *testing.T) {
	t.Parallel()

	table := newLockTable(64)
	ctx := context.Background()

	release, err := table.acquire(ctx, "doc1")
	require.NoError(t, err)

	// A second acquire of the same id must block until the first releases.
	acquired := make(chan struct{})
	go func() {
		release2, err := table.acquire(ctx, "doc1")
		if err == nil {
			release2()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire completed while stripe was held")
	case <-time.After(50 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire did not complete after release")
	}
}

func TestStripeIsolationAcrossIDs(t *testing.T) {
	t.Parallel()

	table := newLockTable(1024)

	// Find an id on a different stripe than doc1; with 1024 stripes this
	// terminates almost immediately.
	other := ""
	for _, candidate := range []string{"doc2", "doc3", "doc4", "doc5", "doc6"} {
		if table.stripe(candidate) != table.stripe("doc1") {
			other = candidate
			break
		}
	}
	require.NotEmpty(t, other, "expected at least one id on a different stripe")

	release, err := table.acquire(context.Background(), "doc1")
	require.NoError(t, err)
	defer release()

	// Holding doc1's stripe must not block an unrelated document.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	releaseOther, err := table.acquire(ctx, other)
	require.NoError(t, err, "acquire of unrelated id should not block")
	releaseOther()
}

func TestAcquireHonorsCancellation(t *testing.T) {
	t.Parallel()

	table := newLockTable(16)

	release, err := table.acquire(context.Background(), "doc1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = table.acquire(ctx, "doc1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
