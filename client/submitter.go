package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// wireReport mirrors the server's sync item shape.
type wireReport struct {
	Fingerprint   string        `json:"fingerprint"`
	Filename      string        `json:"filename"`
	Image         string        `json:"image"`
	Role          string        `json:"role"`
	CaptureSource string        `json:"capture_source"`
	PlaceCity     string        `json:"place_city,omitempty"`
	PlaceRegion   string        `json:"place_region,omitempty"`
	CapturedAt    time.Time     `json:"captured_at"`
	Snapshot      *wireSnapshot `json:"snapshot,omitempty"`
}

type wireSnapshot struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	TakenAt   time.Time `json:"taken_at"`
}

// Submitter delivers drained batches to the server's sync endpoint.
type Submitter struct {
	BaseURL      string
	UserID       string
	ServiceToken string
	Client       *http.Client
}

func NewSubmitter(baseURL, userID, serviceToken string) *Submitter {
	return &Submitter{
		BaseURL:      baseURL,
		UserID:       userID,
		ServiceToken: serviceToken,
		Client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Deliver posts the whole batch in a single request. Any non-2xx answer
// counts as a failed drain; per-item rejections inside a 200 response
// are the server's business and do not fail the batch.
func (s *Submitter) Deliver(ctx context.Context, items []Item) error {
	reports := make([]wireReport, 0, len(items))
	for _, it := range items {
		r := wireReport{
			Fingerprint:   it.Fingerprint,
			Filename:      it.Filename,
			Image:         it.Payload,
			Role:          it.Role,
			CaptureSource: it.CaptureSource,
			PlaceCity:     it.PlaceCity,
			PlaceRegion:   it.PlaceRegion,
			CapturedAt:    it.CapturedAt,
		}
		if it.SnapshotLat != nil && it.SnapshotLon != nil {
			r.Snapshot = &wireSnapshot{
				Latitude:  *it.SnapshotLat,
				Longitude: *it.SnapshotLon,
				TakenAt:   it.CapturedAt,
			}
		}
		reports = append(reports, r)
	}

	payload, err := json.Marshal(map[string]interface{}{"reports": reports})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/sync/reports", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.ServiceToken)
	req.Header.Set("X-User-ID", s.UserID)

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sync endpoint returned %d", resp.StatusCode)
	}
	return nil
}
