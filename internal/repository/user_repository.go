package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/face-attend/internal/logging"
)

// ErrDuplicateUser is returned when a create collides with an existing email
// or filename. Requires the gorm connection to be opened with TranslateError.
var ErrDuplicateUser = errors.New("user already exists")

// ErrUserNotFound is returned when a lookup matches no row.
var ErrUserNotFound = errors.New("user not found")

// User is an enrolled person. Filename correlates the row with the image and
// signature blobs written under the same identifier.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"column:name;size:128;not null" json:"name"`
	Email     string    `gorm:"column:email;size:128;not null;uniqueIndex" json:"email"`
	Filename  string    `gorm:"column:filename;size:128;not null;uniqueIndex" json:"filename"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName overrides the default table name.
func (User) TableName() string {
	return "users"
}

// UserRepository provides persistence APIs for enrolled users.
type UserRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewUserRepository creates a new repository instance.
func NewUserRepository(db *gorm.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:             db,
		logger:         logger.Named("user_repository"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AutoMigrate ensures the schema, including the unique indexes on email and
// filename, is available.
func (r *UserRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&User{})
}

// Create inserts a user row. Unique-constraint collisions surface as
// ErrDuplicateUser; the constraint itself is what keeps two concurrent
// registrations with the same email from both succeeding.
func (r *UserRepository) Create(ctx context.Context, user *User) error {
	err := r.executeWithRetry(ctx, "repository.create_user", user.Filename, func() error {
		return r.db.WithContext(ctx).Create(user).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateUser
	}
	return err
}

// FindAll returns every enrolled user ordered by ascending id, the scan order
// the identification pipeline aligns its comparisons with.
func (r *UserRepository) FindAll(ctx context.Context) ([]User, error) {
	var users []User
	err := r.executeWithRetry(ctx, "repository.find_all", "", func() error {
		return r.db.WithContext(ctx).Order("id ASC").Find(&users).Error
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// FindByID retrieves one user by surrogate key.
func (r *UserRepository) FindByID(ctx context.Context, id uint) (*User, error) {
	var user User
	err := r.executeWithRetry(ctx, "repository.find_by_id", "", func() error {
		return r.db.WithContext(ctx).First(&user, id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile changes name and email only. The face signature is
// deliberately untouched; changing the face means delete plus re-register.
func (r *UserRepository) UpdateProfile(ctx context.Context, id uint, name, email string) error {
	err := r.executeWithRetry(ctx, "repository.update_profile", "", func() error {
		res := r.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).
			Updates(map[string]interface{}{"name": name, "email": email})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateUser
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return err
}

// Delete removes a user row.
func (r *UserRepository) Delete(ctx context.Context, id uint) error {
	return r.executeWithRetry(ctx, "repository.delete_user", "", func() error {
		return r.db.WithContext(ctx).Delete(&User{}, id).Error
	})
}

// Count returns the number of enrolled users.
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.executeWithRetry(ctx, "repository.count_users", "", func() error {
		return r.db.WithContext(ctx).Model(&User{}).Count(&count).Error
	})
	return count, err
}

// executeWithRetry runs fn, retrying transient failures with capped
// exponential backoff. Non-transient errors return immediately so constraint
// violations are never retried.
func (r *UserRepository) executeWithRetry(ctx context.Context, operation, id string, fn func() error) error {
	if r.retryAttempts <= 1 {
		return fn()
	}

	backoff := r.initialBackoff
	opLogger := logging.WithOperation(r.logger, operation, id)
	var err error
	for attempt := 0; attempt < r.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, id, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= r.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("database operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == r.retryAttempts-1 {
			return err
		}

		opLogger.Warn("transient database error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return err
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
