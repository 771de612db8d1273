package faceencoder

import (
	"context"
	"errors"
)

// Encoding is a fixed-length face embedding produced by the encoder service.
type Encoding []float32

// Policy selects how the encoder resolves images containing more or fewer
// faces than exactly one.
type Policy int

const (
	// SingleFace requires exactly one face in the image. Enrollment uses it:
	// a registration photo with several people is ambiguous and gets rejected.
	SingleFace Policy = iota
	// MostProminent takes the face with the highest detection score.
	// Identification uses it so group shots still yield a usable probe.
	MostProminent
)

var (
	// ErrNoFace is returned when the encoder finds no face in the image.
	ErrNoFace = errors.New("no face detected")
	// ErrMultipleFaces is returned under the SingleFace policy when the
	// image contains more than one face.
	ErrMultipleFaces = errors.New("multiple faces detected")
)

// Client exposes the subset of the embedding service used by the pipelines.
type Client interface {
	Encode(ctx context.Context, imageBytes []byte, policy Policy) (Encoding, error)
}
