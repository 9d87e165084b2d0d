package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/authflow/internal/logging"
	"github.com/iliyamo/authflow/internal/model"
	"github.com/iliyamo/authflow/internal/queue"
	"github.com/iliyamo/authflow/internal/repository"
	"github.com/iliyamo/authflow/internal/utils"
)

// VerifyOutcome is the result of following a verification link.
type VerifyOutcome int

const (
	VerifyOutcomeVerified VerifyOutcome = iota + 1
	VerifyOutcomeAlreadyVerified
)

// ResendOutcome is the result of a resend request.  Unknown and unverified
// addresses share ResendOutcomeGeneric so existence is never revealed.
type ResendOutcome int

const (
	ResendOutcomeGeneric ResendOutcome = iota + 1
	ResendOutcomeAlreadyVerified
)

// VerificationLink is a signed, stateless verification URL and its parts.
type VerificationLink struct {
	ID        uint64
	Hash      string
	Signature string
	URL       string
	ExpiresAt time.Time
}

// VerificationService builds and checks signed verification links and
// hands verification mail to the publisher.
type VerificationService struct {
	Users     UserStore
	Publisher VerificationPublisher
	Log       logging.Logger
	Key       string
	BaseURL   string
	LinkTTL   time.Duration
	Now       func() time.Time
}

func NewVerificationService(users UserStore, pub VerificationPublisher, log logging.Logger, key, baseURL string, ttl time.Duration) *VerificationService {
	return &VerificationService{
		Users:     users,
		Publisher: pub,
		Log:       log.With("component", "verification"),
		Key:       key,
		BaseURL:   strings.TrimRight(baseURL, "/"),
		LinkTTL:   ttl,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// BuildLink signs a verification link for the user's current email.
func (s *VerificationService) BuildLink(user model.User) (VerificationLink, error) {
	now := s.Now()
	exp := now.Add(s.LinkTTL)
	hash := utils.EmailHash(user.Email)
	sig, err := utils.SignVerification(s.Key, user.ID, hash, now, exp)
	if err != nil {
		return VerificationLink{}, err
	}
	u := fmt.Sprintf("%s/api/email/verify/%d/%s?signature=%s",
		s.BaseURL, user.ID, hash, url.QueryEscape(sig))
	return VerificationLink{ID: user.ID, Hash: hash, Signature: sig, URL: u, ExpiresAt: exp}, nil
}

// SendVerification queues a verification mail for user.  Failures are
// logged and never surface to the caller.
func (s *VerificationService) SendVerification(ctx context.Context, user model.User) {
	link, err := s.BuildLink(user)
	if err != nil {
		s.Log.Error(ctx, "build verification link", "user_id", user.ID, "error", err)
		return
	}
	ev := queue.VerificationRequested{
		UserID:      user.ID,
		Name:        user.Name,
		Email:       user.Email,
		URL:         link.URL,
		ExpiresAt:   link.ExpiresAt,
		RequestedAt: s.Now(),
	}
	if err := s.Publisher.PublishVerification(ctx, ev); err != nil {
		s.Log.Error(ctx, "publish verification mail", "user_id", user.ID, "error", err)
		return
	}
	s.Log.Info(ctx, "verification mail queued", "user_id", user.ID)
}

// Verify checks a link produced by BuildLink and marks the user verified.
// Following a valid link twice reports VerifyOutcomeAlreadyVerified.
func (s *VerificationService) Verify(ctx context.Context, id, hash, signature string) (VerifyOutcome, error) {
	userID, err := strconv.ParseUint(id, 10, 64)
	if err != nil || userID == 0 || hash == "" || signature == "" {
		return 0, ErrInvalidLink
	}
	if err := utils.ParseVerification(s.Key, signature, userID, hash, s.Now()); err != nil {
		return 0, ErrInvalidLink
	}
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrInvalidLink
		}
		return 0, fmt.Errorf("load user: %w", err)
	}
	// The link is bound to the address it was sent to.
	if utils.EmailHash(user.Email) != hash {
		return 0, ErrInvalidLink
	}
	if user.IsVerified() {
		return VerifyOutcomeAlreadyVerified, nil
	}
	changed, err := s.Users.MarkVerified(ctx, user.ID, s.Now())
	if err != nil {
		return 0, fmt.Errorf("mark verified: %w", err)
	}
	if !changed {
		return VerifyOutcomeAlreadyVerified, nil
	}
	s.Log.Info(ctx, "email verified", "user_id", user.ID)
	return VerifyOutcomeVerified, nil
}

// Resend re-queues verification mail for an unverified address.
func (s *VerificationService) Resend(ctx context.Context, email string) (ResendOutcome, error) {
	user, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ResendOutcomeGeneric, nil
		}
		return 0, fmt.Errorf("load user: %w", err)
	}
	if user.IsVerified() {
		return ResendOutcomeAlreadyVerified, nil
	}
	s.SendVerification(ctx, user)
	return ResendOutcomeGeneric, nil
}
