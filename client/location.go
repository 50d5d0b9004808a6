package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"cleanup-bounty-system/geotag"
)

// LocationService is the device-side SnapshotProvider: a one-shot read
// against the platform's local location daemon.
type LocationService struct {
	BaseURL string
	Client  *http.Client
}

func NewLocationService(baseURL string) *LocationService {
	return &LocationService{
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout: geotag.DefaultSnapshotTimeout,
		},
	}
}

func (l *LocationService) Snapshot(ctx context.Context, hint geotag.AccuracyHint) (geotag.Coordinates, error) {
	endpoint := fmt.Sprintf("%s/location/current?accuracy=%s", l.BaseURL, url.QueryEscape(hint.String()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return geotag.Coordinates{}, err
	}

	resp, err := l.Client.Do(req)
	if err != nil {
		return geotag.Coordinates{}, fmt.Errorf("%w: %v", geotag.ErrLocationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geotag.Coordinates{}, fmt.Errorf("%w: daemon returned %d", geotag.ErrLocationUnavailable, resp.StatusCode)
	}

	var body struct {
		Latitude  float64   `json:"latitude"`
		Longitude float64   `json:"longitude"`
		AccuracyM float64   `json:"accuracy_m"`
		ReadAt    time.Time `json:"read_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return geotag.Coordinates{}, fmt.Errorf("%w: malformed daemon response", geotag.ErrLocationUnavailable)
	}

	coords := geotag.Coordinates{Latitude: body.Latitude, Longitude: body.Longitude}
	if !coords.Valid() {
		return geotag.Coordinates{}, geotag.ErrLocationUnavailable
	}
	return coords, nil
}
