package service

import (
	"context"
	"time"

	"github.com/iliyamo/authflow/internal/model"
	"github.com/iliyamo/authflow/internal/queue"
)

// UserStore is the credential store the auth core depends on.  Both the
// MySQL and the in-memory repositories satisfy it.
type UserStore interface {
	Create(ctx context.Context, name, email, passwordHash string) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	MarkVerified(ctx context.Context, id uint64, at time.Time) (bool, error)
}

// TokenStore persists bearer token rows.
type TokenStore interface {
	Create(ctx context.Context, t model.AccessToken) (uint64, error)
	GetByID(ctx context.Context, id uint64) (model.AccessToken, error)
	Delete(ctx context.Context, id uint64) error
	DeleteAllForUser(ctx context.Context, userID uint64) (int64, error)
	Touch(ctx context.Context, id uint64, at time.Time) error
}

// VerificationPublisher hands a verification mail to out-of-band delivery.
type VerificationPublisher interface {
	PublishVerification(ctx context.Context, ev queue.VerificationRequested) error
}
