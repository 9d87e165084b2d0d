package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/authflow/internal/utils"
)

func TestVerificationService_BuildLink(t *testing.T) {
	f := newFixture(t)
	u, err := f.users.Create(context.Background(), "Alice", "A@x.com", "h")
	require.NoError(t, err)

	link, err := f.verify.BuildLink(u)
	require.NoError(t, err)
	assert.Equal(t, utils.EmailHash("a@x.com"), link.Hash)
	assert.Equal(t, f.clock.Now().Add(time.Hour), link.ExpiresAt)
	assert.Equal(t, "http://localhost:8000/api/email/verify/1/"+link.Hash+"?signature="+link.Signature, link.URL)
}

func TestVerificationService_VerifyAndReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, err := f.users.Create(ctx, "Alice", "a@x.com", "h")
	require.NoError(t, err)
	link, err := f.verify.BuildLink(u)
	require.NoError(t, err)
	id := strconv.FormatUint(link.ID, 10)

	out, err := f.verify.Verify(ctx, id, link.Hash, link.Signature)
	require.NoError(t, err)
	assert.Equal(t, VerifyOutcomeVerified, out)

	got, err := f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsVerified())

	out, err = f.verify.Verify(ctx, id, link.Hash, link.Signature)
	require.NoError(t, err)
	assert.Equal(t, VerifyOutcomeAlreadyVerified, out)
}

func TestVerificationService_VerifyRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, err := f.users.Create(ctx, "Alice", "a@x.com", "h")
	require.NoError(t, err)
	bob, err := f.users.Create(ctx, "Bob", "b@x.com", "h")
	require.NoError(t, err)
	link, err := f.verify.BuildLink(alice)
	require.NoError(t, err)
	bobLink, err := f.verify.BuildLink(bob)
	require.NoError(t, err)
	id := strconv.FormatUint(alice.ID, 10)

	foreignSig, err := utils.SignVerification("other-key", alice.ID, link.Hash, f.clock.Now(), f.clock.Now().Add(time.Hour))
	require.NoError(t, err)
	ghostHash := utils.EmailHash("ghost@x.com")
	ghostSig, err := utils.SignVerification(testKey, 42, ghostHash, f.clock.Now(), f.clock.Now().Add(time.Hour))
	require.NoError(t, err)

	cases := []struct {
		name          string
		id, hash, sig string
	}{
		{"non numeric id", "abc", link.Hash, link.Signature},
		{"zero id", "0", link.Hash, link.Signature},
		{"missing signature", id, link.Hash, ""},
		{"tampered hash", id, bobLink.Hash, link.Signature},
		{"tampered id", strconv.FormatUint(bob.ID, 10), link.Hash, link.Signature},
		{"foreign key", id, link.Hash, foreignSig},
		{"garbage signature", id, link.Hash, "not.a.jwt"},
		{"unknown user", "42", ghostHash, ghostSig},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.verify.Verify(ctx, tc.id, tc.hash, tc.sig)
			assert.ErrorIs(t, err, ErrInvalidLink)
		})
	}

	got, err := f.users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, got.IsVerified())
}

func TestVerificationService_VerifyExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, err := f.users.Create(ctx, "Alice", "a@x.com", "h")
	require.NoError(t, err)
	link, err := f.verify.BuildLink(u)
	require.NoError(t, err)

	f.clock.Advance(time.Hour + time.Minute)
	_, err = f.verify.Verify(ctx, "1", link.Hash, link.Signature)
	assert.ErrorIs(t, err, ErrInvalidLink)
}

func TestVerificationService_Resend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pending, err := f.users.Create(ctx, "Alice", "a@x.com", "h")
	require.NoError(t, err)
	done, err := f.users.Create(ctx, "Bob", "b@x.com", "h")
	require.NoError(t, err)
	_, err = f.users.MarkVerified(ctx, done.ID, f.clock.Now())
	require.NoError(t, err)

	out, err := f.verify.Resend(ctx, "ghost@x.com")
	require.NoError(t, err)
	assert.Equal(t, ResendOutcomeGeneric, out)
	assert.Zero(t, f.pub.count())

	out, err = f.verify.Resend(ctx, "A@X.com")
	require.NoError(t, err)
	assert.Equal(t, ResendOutcomeGeneric, out)
	assert.Equal(t, 1, f.pub.count())
	assert.Equal(t, pending.ID, f.pub.last(t).UserID)

	out, err = f.verify.Resend(ctx, "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, ResendOutcomeAlreadyVerified, out)
	assert.Equal(t, 1, f.pub.count())
}

func TestVerificationService_PublishFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")
	u, err := f.users.Create(context.Background(), "Alice", "a@x.com", "h")
	require.NoError(t, err)

	assert.NotPanics(t, func() { f.verify.SendVerification(context.Background(), u) })
	out, err := f.verify.Resend(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, ResendOutcomeGeneric, out)
}
