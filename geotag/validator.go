package geotag

import (
	"context"
	"errors"
	"time"
)

// Provenance classifies how a photo's location evidence was obtained.
type Provenance string

const (
	ProvenanceDeviceEmbedded      Provenance = "device-embedded"
	ProvenanceSnapshotSubstituted Provenance = "snapshot-substituted"
	ProvenanceUnverified          Provenance = "unverified"
)

// Role declares what the photo is evidence of.
type Role string

const (
	RoleReport Role = "report"
	RoleBefore Role = "before"
	RoleAfter  Role = "after"
)

// CaptureSource is where the photo came from on the device.
type CaptureSource string

const (
	SourceCamera  CaptureSource = "device-camera"
	SourceGallery CaptureSource = "device-gallery"
)

// ErrMissingLocationEvidence is returned for camera captures without
// embedded location tags. The user must recapture; the validator never
// substitutes a snapshot for a camera photo.
var ErrMissingLocationEvidence = errors.New("camera photo has no embedded location evidence")

// DefaultSnapshotTimeout bounds the one-shot location read for gallery
// substitution.
const DefaultSnapshotTimeout = 10 * time.Second

// Evidence is the validator's provenance decision for one photo.
// It is immutable once produced.
type Evidence struct {
	Role        Role         `json:"role"`
	Provenance  Provenance   `json:"provenance"`
	Location    *Coordinates `json:"location,omitempty"`
	Substituted bool         `json:"substituted"`
	Orientation int          `json:"orientation,omitempty"`
}

// Verified reports whether the evidence carries any location at all.
func (e Evidence) Verified() bool {
	return e.Provenance != ProvenanceUnverified
}

// Validator combines the metadata reader and the snapshot provider into
// a single provenance decision per photo.
type Validator struct {
	Reader          MetadataReader
	Snapshots       SnapshotProvider
	SnapshotTimeout time.Duration
}

func NewValidator(reader MetadataReader, snapshots SnapshotProvider) *Validator {
	return &Validator{
		Reader:          reader,
		Snapshots:       snapshots,
		SnapshotTimeout: DefaultSnapshotTimeout,
	}
}

// Validate classifies a photo's location evidence.
//
// Embedded, well-formed tags always win and the snapshot provider is
// never consulted. Without tags, camera captures fail hard with
// ErrMissingLocationEvidence, while gallery picks fall back to a single
// bounded location read: success yields snapshot-substituted evidence
// explicitly flagged as not originating from the photo itself, and
// timeout or denial yields unverified evidence for the caller's policy
// to accept or refuse.
func (v *Validator) Validate(ctx context.Context, photo []byte, role Role, source CaptureSource) (Evidence, error) {
	ev := Evidence{Role: role, Orientation: v.Reader.Orientation(photo)}

	if coords, err := v.Reader.ReadLocation(photo); err == nil {
		ev.Provenance = ProvenanceDeviceEmbedded
		ev.Location = &coords
		return ev, nil
	}

	if source == SourceCamera {
		return Evidence{}, ErrMissingLocationEvidence
	}

	timeout := v.SnapshotTimeout
	if timeout <= 0 {
		timeout = DefaultSnapshotTimeout
	}
	snapCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	coords, err := v.Snapshots.Snapshot(snapCtx, AccuracyHigh)
	if err != nil || !coords.Valid() {
		ev.Provenance = ProvenanceUnverified
		return ev, nil
	}

	ev.Provenance = ProvenanceSnapshotSubstituted
	ev.Location = &coords
	ev.Substituted = true
	return ev, nil
}
