package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/authflow/internal/logging"
	"github.com/iliyamo/authflow/internal/queue"
	"github.com/iliyamo/authflow/internal/repository"
)

const testKey = "test-app-key"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type capturePublisher struct {
	mu     sync.Mutex
	events []queue.VerificationRequested
	err    error
}

func (p *capturePublisher) PublishVerification(_ context.Context, ev queue.VerificationRequested) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) last(t *testing.T) queue.VerificationRequested {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.events, "no verification mail published")
	return p.events[len(p.events)-1]
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type fixture struct {
	users  *repository.MemoryUserRepo
	tokens *repository.MemoryTokenRepo
	pub    *capturePublisher
	clock  *fakeClock
	issuer *TokenIssuer
	verify *VerificationService
	auth   *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:  repository.NewMemoryUserRepo(),
		tokens: repository.NewMemoryTokenRepo(),
		pub:    &capturePublisher{},
		clock:  newFakeClock(),
	}
	f.issuer = NewTokenIssuer(f.tokens, f.users)
	f.issuer.Now = f.clock.Now
	f.verify = NewVerificationService(f.users, f.pub, logging.Discard(), testKey, "http://localhost:8000/", time.Hour)
	f.verify.Now = f.clock.Now
	f.auth = NewAuthService(f.users, f.issuer, f.verify, logging.Discard(), bcrypt.MinCost, time.Hour)
	return f
}

// linkParts splits a published verification URL into id, hash and signature.
func linkParts(t *testing.T, raw string) (string, string, string) {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	segs := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	require.Len(t, segs, 5)
	require.Equal(t, []string{"api", "email", "verify"}, segs[:3])
	return segs[3], segs[4], u.Query().Get("signature")
}

func (f *fixture) registerVerified(t *testing.T, name, email, password string) {
	t.Helper()
	_, err := f.auth.Register(context.Background(), RegisterInput{Name: name, Email: email, Password: password, PasswordConfirmation: password})
	require.NoError(t, err)
	id, hash, sig := linkParts(t, f.pub.last(t).URL)
	out, err := f.verify.Verify(context.Background(), id, hash, sig)
	require.NoError(t, err)
	require.Equal(t, VerifyOutcomeVerified, out)
}

func TestValidationError_FirstMessage(t *testing.T) {
	ve := &ValidationError{Fields: map[string][]string{
		"password": {"The password must be at least 8 characters."},
		"email":    {"The email field is required."},
	}}
	assert.Equal(t, "The email field is required.", ve.FirstMessage())

	got, ok := IsValidation(errors.Join(errors.New("ctx"), ve))
	require.True(t, ok)
	assert.Same(t, ve, got)

	_, ok = IsValidation(ErrInvalidCredentials)
	assert.False(t, ok)
	assert.Equal(t, "The given data was invalid.", (&ValidationError{}).FirstMessage())
}
