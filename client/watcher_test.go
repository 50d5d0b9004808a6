package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherDrainsOnReconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := openTestQueue(t)
	require.NoError(t, q.Enqueue(ctx, testItem(0)))

	var online atomic.Bool
	d := &fakeDeliverer{}
	w := &Watcher{
		Queue:    q,
		Deliver:  d,
		Probe:    func(context.Context) bool { return online.Load() },
		Interval: 10 * time.Millisecond,
	}
	go w.Run(ctx)

	// Offline: nothing ships.
	time.Sleep(50 * time.Millisecond)
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, d.delivered())

	// Back online: the offline→online edge triggers a drain.
	online.Store(true)
	require.Eventually(t, func() bool {
		n, err := q.Len(ctx)
		return err == nil && n == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherDrainsImmediatelyWhenOnline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := openTestQueue(t)
	require.NoError(t, q.Enqueue(ctx, testItem(0)))

	w := &Watcher{
		Queue:    q,
		Deliver:  &fakeDeliverer{},
		Probe:    func(context.Context) bool { return true },
		Interval: time.Hour,
	}
	go w.Run(ctx)

	require.Eventually(t, func() bool {
		n, err := q.Len(ctx)
		return err == nil && n == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHTTPProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
	}))

	probe := HTTPProbe(srv.URL, srv.Client())
	assert.True(t, probe(context.Background()))

	srv.Close()
	assert.False(t, probe(context.Background()), "unreachable host reads as offline")
}
