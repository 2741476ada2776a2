package docstore

import (
	"context"
	"hash/fnv"

	"golang.org/x/sync/semaphore"
)

// DefaultLockStripes is the number of lock stripes a Store uses unless
// WithLockStripes overrides it.
const DefaultLockStripes = 1024

// lockTable is a fixed-size pool of single-slot semaphores. Operations on
// the same document id always map to the same slot and therefore serialize;
// unrelated documents usually land on different slots and proceed in
// parallel. Two ids may collide on a slot, which costs parallelism but
// never correctness. The fixed size bounds memory no matter how many
// documents pass through the store.
type lockTable struct {
	stripes []*semaphore.Weighted
}

func newLockTable(n int) *lockTable {
	t := &lockTable{stripes: make([]*semaphore.Weighted, n)}
	for i := range t.stripes {
		t.stripes[i] = semaphore.NewWeighted(1)
	}
	return t
}

// stripe returns the lock guarding docID. The mapping is stable for the
// lifetime of the table.
func (t *lockTable) stripe(docID string) *semaphore.Weighted {
	h := fnv.New32a()
	_, _ = h.Write([]byte(docID))
	return t.stripes[h.Sum32()%uint32(len(t.stripes))]
}

// acquire blocks until the stripe for docID is free or ctx is done. The
// returned release function must be called exactly once.
func (t *lockTable) acquire(ctx context.Context, docID string) (func(), error) {
	sem := t.stripe(docID)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { sem.Release(1) }, nil
}
