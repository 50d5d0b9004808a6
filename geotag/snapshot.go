package geotag

import (
	"context"
	"errors"
)

// AccuracyHint tells a SnapshotProvider how hard to try.
type AccuracyHint int

const (
	AccuracyCoarse AccuracyHint = iota
	AccuracyBalanced
	AccuracyHigh
)

func (h AccuracyHint) String() string {
	switch h {
	case AccuracyHigh:
		return "high"
	case AccuracyBalanced:
		return "balanced"
	default:
		return "coarse"
	}
}

// ErrLocationUnavailable means the one-shot location read timed out or
// was denied. The validator downgrades the evidence instead of failing.
var ErrLocationUnavailable = errors.New("location unavailable")

// SnapshotProvider performs a one-shot read of the device's current
// location. Implementations must honor ctx cancellation.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, hint AccuracyHint) (Coordinates, error)
}

// StaticProvider replays a location snapshot captured earlier on the
// device, e.g. one carried alongside an offline-queued photo.
type StaticProvider struct {
	Coords Coordinates
}

func (p StaticProvider) Snapshot(ctx context.Context, hint AccuracyHint) (Coordinates, error) {
	if !p.Coords.Valid() {
		return Coordinates{}, ErrLocationUnavailable
	}
	return p.Coords, nil
}

// DeniedProvider always reports the location service as unavailable.
// The server uses it when a submission carries no device snapshot.
type DeniedProvider struct{}

func (DeniedProvider) Snapshot(ctx context.Context, hint AccuracyHint) (Coordinates, error) {
	return Coordinates{}, ErrLocationUnavailable
}
