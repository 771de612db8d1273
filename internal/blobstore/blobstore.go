package blobstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/example/face-attend/internal/faceencoder"
)

// ErrSignatureMissing is returned when a user row exists but its signature
// blob does not (for example after an interrupted enrollment).
var ErrSignatureMissing = errors.New("signature blob missing")

const (
	imageExt     = ".jpg"
	signatureExt = ".sig"
)

// Store persists image and signature blobs under a shared data root, keyed by
// an opaque identifier. Identifiers are freshly random per request, so no two
// writers ever target the same path and no locking is needed.
type Store struct {
	imagesDir     string
	signaturesDir string
	stagingDir    string
	logger        *zap.Logger
}

// New creates the blob store, creating its root directories idempotently.
func New(dataDir string, logger *zap.Logger) (*Store, error) {
	s := &Store{
		imagesDir:     filepath.Join(dataDir, "images"),
		signaturesDir: filepath.Join(dataDir, "signatures"),
		stagingDir:    filepath.Join(dataDir, "staging"),
		logger:        logger.Named("blobstore"),
	}
	for _, dir := range []string{s.imagesDir, s.signaturesDir, s.stagingDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create blob directory %s: %w", dir, err)
		}
	}
	return s, nil
}

func (s *Store) imagePath(id string) string  { return filepath.Join(s.imagesDir, id+imageExt) }
func (s *Store) stagedPath(id string) string { return filepath.Join(s.stagingDir, id+imageExt) }
func (s *Store) sigPath(id string) string    { return filepath.Join(s.signaturesDir, id+signatureExt) }

// StageImage writes image bytes to the staging area. Staged images only move
// into the image store once the rest of the enrollment has committed.
func (s *Store) StageImage(id string, data []byte) error {
	return os.WriteFile(s.stagedPath(id), data, 0o644)
}

// PromoteImage moves a staged image into the image store.
func (s *Store) PromoteImage(id string) error {
	return os.Rename(s.stagedPath(id), s.imagePath(id))
}

// DiscardStaged removes a staged image. Missing files are not an error, so
// failure paths can discard unconditionally.
func (s *Store) DiscardStaged(id string) error {
	err := os.Remove(s.stagedPath(id))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// WriteImage writes image bytes directly into the image store. Identification
// uses it for probe retention, which has no commit step to wait for.
func (s *Store) WriteImage(id string, data []byte) error {
	return os.WriteFile(s.imagePath(id), data, 0o644)
}

// ReadImage reads stored image bytes.
func (s *Store) ReadImage(id string) ([]byte, error) {
	return os.ReadFile(s.imagePath(id))
}

// WriteSignature serializes and persists a face signature.
func (s *Store) WriteSignature(id string, enc faceencoder.Encoding) error {
	return os.WriteFile(s.sigPath(id), EncodeSignature(enc), 0o644)
}

// ReadSignature loads and decodes a face signature. A missing file maps to
// ErrSignatureMissing so callers can tell absence apart from I/O failure.
func (s *Store) ReadSignature(id string) (faceencoder.Encoding, error) {
	data, err := os.ReadFile(s.sigPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSignatureMissing, id)
		}
		return nil, err
	}
	return DecodeSignature(data)
}

// HasSignature reports whether a signature blob exists for the identifier.
func (s *Store) HasSignature(id string) bool {
	_, err := os.Stat(s.sigPath(id))
	return err == nil
}

// Remove deletes every blob recorded under the identifier: stored image,
// signature, and any staged leftover. Missing files are skipped.
func (s *Store) Remove(id string) error {
	var errs []error
	for _, path := range []string{s.imagePath(id), s.sigPath(id), s.stagedPath(id)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		s.logger.Warn("failed to remove blobs", zap.String("id", id), zap.Errors("errors", errs))
		return errors.Join(errs...)
	}
	return nil
}
