package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/face-attend/internal/faceencoder"
	"github.com/example/face-attend/internal/logging"
	"github.com/example/face-attend/internal/repository"
)

// EnrollResult is the structured outcome of an enrollment attempt.
type EnrollResult struct {
	Outcome Outcome          `json:"outcome"`
	User    *repository.User `json:"user,omitempty"`
}

// Enroll registers a user by face photo. The image is staged first, the
// registry row committed second, and the signature written before the image
// is promoted out of staging, so a failure at any step leaves no partial
// triple behind: every failure path deletes whatever was already written
// under this identifier.
//
// Domain outcomes (duplicate email, no face, several faces) come back as
// results with a nil error; only storage and encoder infrastructure failures
// return an error.
func (uc *FaceUseCase) Enroll(ctx context.Context, name, email string, imageBytes []byte) (*EnrollResult, error) {
	filename := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.enroll", filename)

	if err := uc.blobs.StageImage(filename, imageBytes); err != nil {
		wrapped := logging.NewOperationError("usecase.stage_image", filename, err)
		opLogger.Error("failed to stage enrollment image", zap.Error(wrapped))
		return nil, wrapped
	}

	user := &repository.User{Name: name, Email: email, Filename: filename}
	if err := uc.users.Create(ctx, user); err != nil {
		if discardErr := uc.blobs.DiscardStaged(filename); discardErr != nil {
			opLogger.Warn("failed to discard staged image", zap.Error(discardErr))
		}
		if errors.Is(err, repository.ErrDuplicateUser) {
			opLogger.Info("enrollment rejected, user already exists", zap.String("email", email))
			return &EnrollResult{Outcome: OutcomeDuplicateUser}, nil
		}
		wrapped := logging.NewOperationError("usecase.create_user", filename, err)
		opLogger.Error("failed to create user row", zap.Error(wrapped))
		return nil, wrapped
	}

	encoding, err := uc.encoder.Encode(ctx, imageBytes, faceencoder.SingleFace)
	if err != nil {
		uc.rollbackEnrollment(ctx, user, opLogger)
		switch {
		case errors.Is(err, faceencoder.ErrNoFace):
			opLogger.Info("enrollment rejected, no face in image")
			return &EnrollResult{Outcome: OutcomeNoFace}, nil
		case errors.Is(err, faceencoder.ErrMultipleFaces):
			opLogger.Info("enrollment rejected, several faces in image")
			return &EnrollResult{Outcome: OutcomeMultipleFaces}, nil
		}
		wrapped := logging.NewOperationError("usecase.encode_enrollment", filename, err)
		opLogger.Error("encoder call failed", zap.Error(wrapped))
		return nil, wrapped
	}

	if err := uc.blobs.WriteSignature(filename, encoding); err != nil {
		uc.rollbackEnrollment(ctx, user, opLogger)
		wrapped := logging.NewOperationError("usecase.write_signature", filename, err)
		opLogger.Error("failed to persist signature", zap.Error(wrapped))
		return nil, wrapped
	}

	if err := uc.blobs.PromoteImage(filename); err != nil {
		uc.rollbackEnrollment(ctx, user, opLogger)
		wrapped := logging.NewOperationError("usecase.promote_image", filename, err)
		opLogger.Error("failed to promote enrollment image", zap.Error(wrapped))
		return nil, wrapped
	}

	opLogger.Info("user enrolled", zap.Uint("user_id", user.ID))
	return &EnrollResult{Outcome: OutcomeEnrolled, User: user}, nil
}

// rollbackEnrollment undoes a partially committed enrollment: the user row
// and every blob written under its filename, staged or promoted.
func (uc *FaceUseCase) rollbackEnrollment(ctx context.Context, user *repository.User, opLogger *zap.Logger) {
	if err := uc.users.Delete(ctx, user.ID); err != nil {
		opLogger.Warn("rollback failed to delete user row", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	if err := uc.blobs.Remove(user.Filename); err != nil {
		opLogger.Warn("rollback failed to remove blobs", zap.Error(err))
	}
}
