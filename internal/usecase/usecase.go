package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/example/face-attend/internal/faceencoder"
	"github.com/example/face-attend/internal/facematch"
	"github.com/example/face-attend/internal/repository"
)

// UserRegistry defines the persistence operations needed by the pipelines.
type UserRegistry interface {
	Create(ctx context.Context, user *repository.User) error
	FindAll(ctx context.Context) ([]repository.User, error)
	FindByID(ctx context.Context, id uint) (*repository.User, error)
	UpdateProfile(ctx context.Context, id uint, name, email string) error
	Delete(ctx context.Context, id uint) error
	Count(ctx context.Context) (int64, error)
}

// BlobStore defines the image and signature blob operations needed by the
// pipelines.
type BlobStore interface {
	StageImage(id string, data []byte) error
	PromoteImage(id string) error
	DiscardStaged(id string) error
	WriteImage(id string, data []byte) error
	ReadImage(id string) ([]byte, error)
	WriteSignature(id string, enc faceencoder.Encoding) error
	ReadSignature(id string) (faceencoder.Encoding, error)
	Remove(id string) error
}

// Outcome classifies how a pipeline call ended. Outcomes are results, not
// errors: callers render them; only infrastructure failures surface as errors.
type Outcome string

const (
	OutcomeEnrolled      Outcome = "enrolled"
	OutcomeDuplicateUser Outcome = "duplicate_user"
	OutcomeNoFace        Outcome = "no_face_detected"
	OutcomeMultipleFaces Outcome = "multiple_faces"
	OutcomeMatched       Outcome = "matched"
	OutcomeNoMatch       Outcome = "no_match"
)

const defaultReadConcurrency = 4

// FaceUseCase orchestrates enrollment and identification over the registry,
// the blob stores, the encoder service, and the result cache.
type FaceUseCase struct {
	users           UserRegistry
	blobs           BlobStore
	encoder         faceencoder.Client
	cache           Cache
	logger          *zap.Logger
	tolerance       float64
	readConcurrency int
	retryAttempts   int
	initialBackoff  time.Duration
	maxBackoff      time.Duration
}

// NewFaceUseCase constructs a new use case instance. A zero tolerance or
// readConcurrency falls back to the defaults.
func NewFaceUseCase(users UserRegistry, blobs BlobStore, encoder faceencoder.Client, cache Cache, logger *zap.Logger, tolerance float64, readConcurrency int) *FaceUseCase {
	if tolerance <= 0 {
		tolerance = facematch.DefaultTolerance
	}
	if readConcurrency <= 0 {
		readConcurrency = defaultReadConcurrency
	}
	return &FaceUseCase{
		users:           users,
		blobs:           blobs,
		encoder:         encoder,
		cache:           cache,
		logger:          logger.Named("face_usecase"),
		tolerance:       tolerance,
		readConcurrency: readConcurrency,
		retryAttempts:   3,
		initialBackoff:  50 * time.Millisecond,
		maxBackoff:      time.Second,
	}
}

// ListUsers returns every enrolled user in registry scan order.
func (uc *FaceUseCase) ListUsers(ctx context.Context) ([]repository.User, error) {
	return uc.users.FindAll(ctx)
}

// GetUser returns one enrolled user.
func (uc *FaceUseCase) GetUser(ctx context.Context, id uint) (*repository.User, error) {
	return uc.users.FindByID(ctx, id)
}

// CountUsers returns the size of the enrolled set.
func (uc *FaceUseCase) CountUsers(ctx context.Context) (int64, error) {
	return uc.users.Count(ctx)
}

// UpdateProfile changes a user's name and email. It does not touch the face
// signature; a new face requires delete plus re-enrollment.
func (uc *FaceUseCase) UpdateProfile(ctx context.Context, id uint, name, email string) error {
	return uc.users.UpdateProfile(ctx, id, name, email)
}

// Image returns stored image bytes for an identifier, enrollment photo and
// retained probe alike.
func (uc *FaceUseCase) Image(_ context.Context, id string) ([]byte, error) {
	return uc.blobs.ReadImage(id)
}

// RemoveUser deletes the user row together with its image and signature
// blobs, so a deleted enrollment leaves nothing behind on disk.
func (uc *FaceUseCase) RemoveUser(ctx context.Context, id uint) error {
	user, err := uc.users.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := uc.users.Delete(ctx, id); err != nil {
		return err
	}
	if err := uc.blobs.Remove(user.Filename); err != nil {
		// the row is gone; leftover blobs are unreachable but worth noting
		uc.logger.Warn("failed to remove blobs for deleted user",
			zap.Uint("user_id", id), zap.String("filename", user.Filename), zap.Error(err))
	}
	return nil
}
