package client

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

type fakeDeliverer struct {
	mu      sync.Mutex
	batches [][]Item
	err     error
}

func (d *fakeDeliverer) Deliver(_ context.Context, items []Item) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batches = append(d.batches, items)
	return d.err
}

func (d *fakeDeliverer) delivered() [][]Item {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]Item(nil), d.batches...)
}

func openTestQueue(t *testing.T) *Queue {
	t.Helper()
	q, err := Open(context.Background(), filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q
}

func testItem(n int) Item {
	payload := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("photo-%d", n)))
	return Item{
		Filename:      fmt.Sprintf("photo-%d.jpg", n),
		Payload:       payload,
		CaptureSource: "device-gallery",
	}
}

func TestEnqueueAndDrainInOrder(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(ctx, testItem(i)))
	}

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	d := &fakeDeliverer{}
	require.NoError(t, q.Drain(ctx, d))

	require.Len(t, d.delivered(), 1, "whole queue ships as one batch")
	batch := d.delivered()[0]
	require.Len(t, batch, 3)
	assert.Equal(t, "photo-0.jpg", batch[0].Filename)
	assert.Equal(t, "photo-2.jpg", batch[2].Filename)
	assert.Equal(t, Fingerprint(batch[0].Payload), batch[0].Fingerprint)

	n, err = q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "delivered items are removed")
}

func TestDrainFailureKeepsItems(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t)
	require.NoError(t, q.Enqueue(ctx, testItem(0)))
	require.NoError(t, q.Enqueue(ctx, testItem(1)))

	d := &fakeDeliverer{err: errors.New("server unreachable")}
	require.NoError(t, q.Drain(ctx, d), "delivery failure is not fatal")

	items, err := q.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.Equal(t, 1, it.Attempts)
	}

	// A later drain retries the same batch.
	d.err = nil
	require.NoError(t, q.Drain(ctx, d))
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDrainEmptyQueue(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t)

	d := &fakeDeliverer{}
	require.NoError(t, q.Drain(ctx, d))
	assert.Empty(t, d.delivered(), "no delivery attempt for an empty queue")
}

func TestEnqueueDuplicateContentIsNoOp(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t)

	item := testItem(0)
	require.NoError(t, q.Enqueue(ctx, item))
	require.NoError(t, q.Enqueue(ctx, item))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEnqueuePreservesSnapshot(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t)

	lat, lon := 6.5244, 3.3792
	item := testItem(0)
	item.SnapshotLat = &lat
	item.SnapshotLon = &lon
	item.PlaceCity = "Lagos"
	require.NoError(t, q.Enqueue(ctx, item))

	items, err := q.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].SnapshotLat)
	assert.InDelta(t, 6.5244, *items[0].SnapshotLat, 1e-9)
	assert.Equal(t, "Lagos", items[0].PlaceCity)
	assert.False(t, items[0].CapturedAt.IsZero())
}

func TestEnqueueSurfacesStorageErrors(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t)
	require.NoError(t, q.Close())

	err := q.Enqueue(ctx, testItem(0))
	require.Error(t, err)

	var persistErr *QueuePersistError
	assert.True(t, errors.As(err, &persistErr))
}
