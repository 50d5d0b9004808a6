package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitterDeliversBatch(t *testing.T) {
	var got struct {
		Reports []wireReport `json:"reports"`
	}
	var headers http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/sync/reports", r.URL.Path)
		headers = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	lat, lon := 6.5244, 3.3792
	items := []Item{
		{
			Fingerprint:   "fp-1",
			Filename:      "a.jpg",
			Payload:       "aGVsbG8=",
			Role:          "report",
			CaptureSource: "device-gallery",
			PlaceCity:     "Lagos",
			SnapshotLat:   &lat,
			SnapshotLon:   &lon,
			CapturedAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			Fingerprint:   "fp-2",
			Filename:      "b.jpg",
			Payload:       "d29ybGQ=",
			Role:          "report",
			CaptureSource: "device-camera",
			CapturedAt:    time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC),
		},
	}

	s := NewSubmitter(srv.URL, "user-1", "secret-token")
	require.NoError(t, s.Deliver(context.Background(), items))

	assert.Equal(t, "Bearer secret-token", headers.Get("Authorization"))
	assert.Equal(t, "user-1", headers.Get("X-User-ID"))
	assert.Equal(t, "application/json", headers.Get("Content-Type"))

	require.Len(t, got.Reports, 2)
	assert.Equal(t, "fp-1", got.Reports[0].Fingerprint)
	assert.Equal(t, "aGVsbG8=", got.Reports[0].Image)
	require.NotNil(t, got.Reports[0].Snapshot)
	assert.InDelta(t, 6.5244, got.Reports[0].Snapshot.Latitude, 1e-9)
	assert.Nil(t, got.Reports[1].Snapshot, "camera items carry no snapshot")
}

func TestSubmitterFailsOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewSubmitter(srv.URL, "user-1", "secret-token")
	err := s.Deliver(context.Background(), []Item{{Fingerprint: "fp-1", Payload: "eA=="}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
