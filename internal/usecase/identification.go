package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/face-attend/internal/faceencoder"
	"github.com/example/face-attend/internal/facematch"
	"github.com/example/face-attend/internal/logging"
	"github.com/example/face-attend/internal/repository"
)

// IdentifyResult is the structured outcome of an identification attempt.
type IdentifyResult struct {
	Outcome  Outcome          `json:"outcome"`
	ProbeID  string           `json:"probe_id"`
	User     *repository.User `json:"user,omitempty"`
	Distance float64          `json:"distance,omitempty"`
}

// ErrResultPending is returned by GetResult while an identification is still
// being processed.
var ErrResultPending = errors.New("identification still processing")

// ErrResultUnknown is returned by GetResult when no result exists for the
// probe identifier (never issued, or expired from the cache).
var ErrResultUnknown = errors.New("identification result unknown")

const processingMarker = "processing"

// cachedIdentification is the redis representation of a finished result.
type cachedIdentification struct {
	ProbeID   string    `json:"probe_id"`
	Outcome   Outcome   `json:"outcome"`
	UserID    uint      `json:"user_id,omitempty"`
	Distance  float64   `json:"distance,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func identificationCacheKey(probeID string) string {
	return fmt.Sprintf("identification:%s", probeID)
}

// Identify matches a probe image against every enrolled user. The probe is
// retained in the image store under its own identifier for audit, every
// stored signature is loaded under the configured concurrency bound, and the
// closest signature within tolerance wins. Users whose signature blob is
// missing or corrupt are excluded from the comparison instead of failing the
// whole request.
func (uc *FaceUseCase) Identify(ctx context.Context, imageBytes []byte) (*IdentifyResult, error) {
	probeID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.identify", probeID)

	cacheKey := identificationCacheKey(probeID)
	if err := uc.withRedisRetry(ctx, probeID, "cache.set.processing", func() error {
		return uc.cache.Set(ctx, cacheKey, processingMarker, time.Minute)
	}); err != nil {
		opLogger.Error("failed to set processing flag", zap.Error(err))
		return nil, err
	}

	users, err := uc.users.FindAll(ctx)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.scan_users", probeID, err)
		opLogger.Error("failed to scan registry", zap.Error(wrapped))
		return nil, wrapped
	}

	if err := uc.blobs.WriteImage(probeID, imageBytes); err != nil {
		wrapped := logging.NewOperationError("usecase.retain_probe", probeID, err)
		opLogger.Error("failed to retain probe image", zap.Error(wrapped))
		return nil, wrapped
	}

	probe, err := uc.encoder.Encode(ctx, imageBytes, faceencoder.MostProminent)
	if err != nil {
		if errors.Is(err, faceencoder.ErrNoFace) {
			opLogger.Info("no face in probe image")
			result := &IdentifyResult{Outcome: OutcomeNoFace, ProbeID: probeID}
			uc.cacheIdentifyResult(ctx, probeID, result, opLogger)
			return result, nil
		}
		wrapped := logging.NewOperationError("usecase.encode_probe", probeID, err)
		opLogger.Error("encoder call failed", zap.Error(wrapped))
		return nil, wrapped
	}

	signatures, err := uc.loadSignatures(ctx, users, opLogger)
	if err != nil {
		return nil, logging.NewOperationError("usecase.load_signatures", probeID, err)
	}

	var result *IdentifyResult
	if idx, dist, ok := facematch.BestMatch(signatures, probe, uc.tolerance); ok {
		matched := users[idx]
		opLogger.Info("probe matched",
			zap.Uint("user_id", matched.ID), zap.Float64("distance", dist))
		result = &IdentifyResult{Outcome: OutcomeMatched, ProbeID: probeID, User: &matched, Distance: dist}
	} else {
		opLogger.Info("probe matched nobody", zap.Int("candidates", len(users)))
		result = &IdentifyResult{Outcome: OutcomeNoMatch, ProbeID: probeID}
	}

	uc.cacheIdentifyResult(ctx, probeID, result, opLogger)
	return result, nil
}

// loadSignatures reads every user's signature with at most readConcurrency
// reads in flight. Results land at the index of their originating user, so
// alignment with registry scan order survives arbitrary completion order.
// Unreadable signatures leave a nil slot, which can never match.
func (uc *FaceUseCase) loadSignatures(ctx context.Context, users []repository.User, opLogger *zap.Logger) ([]faceencoder.Encoding, error) {
	signatures := make([]faceencoder.Encoding, len(users))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.readConcurrency)
	for i, user := range users {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			enc, err := uc.blobs.ReadSignature(user.Filename)
			if err != nil {
				// per-user isolation: one broken enrollment must not
				// take down the whole identification
				opLogger.Warn("signature unavailable, excluding user from comparison",
					zap.Uint("user_id", user.ID),
					zap.String("filename", user.Filename),
					zap.Error(err))
				return nil
			}
			signatures[i] = enc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return signatures, nil
}

// cacheIdentifyResult stores the finished result for later retrieval. A cache
// write failure here is logged but not fatal: the caller already has the
// result in hand.
func (uc *FaceUseCase) cacheIdentifyResult(ctx context.Context, probeID string, result *IdentifyResult, opLogger *zap.Logger) {
	cached := cachedIdentification{
		ProbeID:   probeID,
		Outcome:   result.Outcome,
		Distance:  result.Distance,
		CreatedAt: time.Now().UTC(),
	}
	if result.User != nil {
		cached.UserID = result.User.ID
	}

	serialized, err := json.Marshal(cached)
	if err != nil {
		opLogger.Error("failed to serialize identification result", zap.Error(err))
		return
	}

	if err := uc.withRedisRetry(ctx, probeID, "cache.set.result", func() error {
		return uc.cache.Set(ctx, identificationCacheKey(probeID), string(serialized), 5*time.Minute)
	}); err != nil {
		opLogger.Warn("failed to cache identification result", zap.Error(err))
	}
}

// GetResult retrieves a previously computed identification outcome by probe
// identifier. Matched users are re-read from the registry so the caller sees
// current profile fields.
func (uc *FaceUseCase) GetResult(ctx context.Context, probeID string) (*IdentifyResult, error) {
	value, err := uc.withRedisGet(ctx, probeID, "cache.get.result", identificationCacheKey(probeID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrResultUnknown
		}
		return nil, err
	}

	if value == processingMarker {
		return nil, ErrResultPending
	}

	var cached cachedIdentification
	if err := json.Unmarshal([]byte(value), &cached); err != nil {
		logging.WithOperation(uc.logger, "usecase.get_result", probeID).
			Warn("failed to decode cached result", zap.Error(err))
		return nil, ErrResultUnknown
	}

	result := &IdentifyResult{
		Outcome:  cached.Outcome,
		ProbeID:  cached.ProbeID,
		Distance: cached.Distance,
	}
	if cached.UserID != 0 {
		user, err := uc.users.FindByID(ctx, cached.UserID)
		if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			return nil, err
		}
		// a since-deleted user leaves the outcome intact with no record
		result.User = user
	}
	return result, nil
}
