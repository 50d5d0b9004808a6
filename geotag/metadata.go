package geotag

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/rwcarlsen/goexif/exif"
)

// ErrNoLocationTags means the image parsed fine but carries no usable
// GPS tags. Callers treat it the same as a parse failure: the photo has
// no embedded location evidence.
var ErrNoLocationTags = errors.New("no embedded location tags")

// MetadataReader extracts embedded evidence from a photo byte buffer.
type MetadataReader interface {
	// ReadLocation returns the embedded GPS coordinates, or an error
	// when the image has none (or cannot be parsed at all).
	ReadLocation(photo []byte) (Coordinates, error)
	// Orientation returns the EXIF orientation tag (1-8), 0 if absent.
	Orientation(photo []byte) int
}

// ExifReader reads EXIF tags from JPEG/TIFF buffers.
type ExifReader struct{}

func (ExifReader) ReadLocation(photo []byte) (Coordinates, error) {
	x, err := exif.Decode(bytes.NewReader(photo))
	if err != nil {
		return Coordinates{}, fmt.Errorf("exif decode: %w", err)
	}
	lat, long, err := x.LatLong()
	if err != nil {
		return Coordinates{}, ErrNoLocationTags
	}
	coords := Coordinates{Latitude: lat, Longitude: long}
	if !coords.Valid() {
		return Coordinates{}, ErrNoLocationTags
	}
	return coords, nil
}

func (ExifReader) Orientation(photo []byte) int {
	x, err := exif.Decode(bytes.NewReader(photo))
	if err != nil {
		return 0
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0
	}
	orientation, err := tag.Int(0)
	if err != nil {
		return 0
	}
	return orientation
}
