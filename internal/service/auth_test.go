package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/authflow/internal/model"
)

func validRegistration(email string) RegisterInput {
	return RegisterInput{Name: "Alice", Email: email, Password: "pw123456", PasswordConfirmation: "pw123456"}
}

func TestAuthService_RegisterCreatesUnverifiedUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i, email := range []string{"a@x.com", "B.Smith@Example.org", "c+tag@x.io"} {
		u, err := f.auth.Register(ctx, validRegistration(email))
		require.NoError(t, err)
		assert.False(t, u.IsVerified())
		assert.Equal(t, strings.ToLower(email), u.Email)
		assert.NotEqual(t, "pw123456", u.PasswordHash)
		assert.Zero(t, f.tokens.CountForUser(u.ID), "registration must not issue a token")
		assert.Equal(t, i+1, f.pub.count())
		assert.Equal(t, StatePendingVerification, StateOf(&u, nil, f.clock.Now()))
	}
}

func TestAuthService_RegisterValidation(t *testing.T) {
	f := newFixture(t)
	long := strings.Repeat("n", 256)

	cases := []struct {
		name  string
		in    RegisterInput
		field string
		msg   string
	}{
		{"missing name", RegisterInput{Email: "a@x.com", Password: "pw123456", PasswordConfirmation: "pw123456"}, "name", "The name field is required."},
		{"long name", RegisterInput{Name: long, Email: "a@x.com", Password: "pw123456", PasswordConfirmation: "pw123456"}, "name", "The name may not be greater than 255 characters."},
		{"bad email", RegisterInput{Name: "A", Email: "nope", Password: "pw123456", PasswordConfirmation: "pw123456"}, "email", "The email must be a valid email address."},
		{"short password", RegisterInput{Name: "A", Email: "a@x.com", Password: "short", PasswordConfirmation: "short"}, "password", "The password must be at least 8 characters."},
		{"mismatch", RegisterInput{Name: "A", Email: "a@x.com", Password: "pw123456", PasswordConfirmation: "pw654321"}, "password", "The password confirmation does not match."},
		{"multibyte short password", RegisterInput{Name: "A", Email: "a@x.com", Password: "pässwö", PasswordConfirmation: "pässwö"}, "password", "The password must be at least 8 characters."},
		{"password over bcrypt limit", RegisterInput{Name: "A", Email: "a@x.com", Password: strings.Repeat("p", 73), PasswordConfirmation: strings.Repeat("p", 73)}, "password", "The password may not be greater than 72 bytes."},
		{"long multibyte name", RegisterInput{Name: strings.Repeat("é", 256), Email: "a@x.com", Password: "pw123456", PasswordConfirmation: "pw123456"}, "name", "The name may not be greater than 255 characters."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.auth.Register(context.Background(), tc.in)
			ve, ok := IsValidation(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, []string{tc.msg}, ve.Fields[tc.field])
		})
	}
	assert.Zero(t, f.pub.count())
}

func TestAuthService_RegisterCountsCharacters(t *testing.T) {
	f := newFixture(t)
	in := validRegistration("a@x.com")
	in.Name = strings.Repeat("é", 200)
	in.Password = strings.Repeat("p", 72)
	in.PasswordConfirmation = in.Password

	u, err := f.auth.Register(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in.Name, u.Name)
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.auth.Register(ctx, validRegistration("a@x.com"))
	require.NoError(t, err)

	_, err = f.auth.Register(ctx, validRegistration("A@X.COM"))
	ve, ok := IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, []string{"The email has already been taken."}, ve.Fields["email"])
	assert.Equal(t, 1, f.pub.count())
}

func TestAuthService_LoginUnverifiedIsForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, err := f.auth.Register(ctx, validRegistration("a@x.com"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, tok, err := f.auth.Login(ctx, LoginInput{Email: "a@x.com", Password: "pw123456"})
		assert.ErrorIs(t, err, ErrEmailNotVerified)
		assert.Empty(t, tok.PlainText)
		assert.Zero(t, f.tokens.CountForUser(u.ID))
	}
}

func TestAuthService_LoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.registerVerified(t, "Alice", "a@x.com", "pw123456")

	_, _, unknown := f.auth.Login(context.Background(), LoginInput{Email: "ghost@x.com", Password: "pw123456"})
	_, _, wrong := f.auth.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "wrong-password"})

	require.ErrorIs(t, unknown, ErrInvalidCredentials)
	require.ErrorIs(t, wrong, ErrInvalidCredentials)
	assert.Equal(t, unknown.Error(), wrong.Error())
}

func TestAuthService_LoginRequiresFields(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.auth.Login(context.Background(), LoginInput{})
	ve, ok := IsValidation(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "email")
	assert.Contains(t, ve.Fields, "password")
}

func TestAuthService_SingleActiveToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "Alice", "a@x.com", "pw123456")

	var prev IssuedToken
	for i := 0; i < 3; i++ {
		u, tok, err := f.auth.Login(ctx, LoginInput{Email: "a@x.com", Password: "pw123456"})
		require.NoError(t, err)
		assert.Equal(t, 1, f.tokens.CountForUser(u.ID))
		if i > 0 {
			_, _, err := f.issuer.Resolve(ctx, prev.PlainText)
			assert.ErrorIs(t, err, ErrInvalidToken, "login %d left the previous token usable", i)
		}
		prev = tok
	}
}

func TestAuthService_RefreshInvalidatesPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "Alice", "a@x.com", "pw123456")
	_, t1, err := f.auth.Login(ctx, LoginInput{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)

	user, tok, err := f.issuer.Resolve(ctx, t1.PlainText)
	require.NoError(t, err)
	t2, err := f.auth.Refresh(ctx, Principal{User: user, Token: tok})
	require.NoError(t, err)
	assert.NotEqual(t, t1.PlainText, t2.PlainText)

	_, _, err = f.issuer.Resolve(ctx, t1.PlainText)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, _, err = f.issuer.Resolve(ctx, t2.PlainText)
	assert.NoError(t, err)
	assert.Equal(t, 1, f.tokens.CountForUser(user.ID))
}

func TestAuthService_LogoutRevokesOnlyCurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "Alice", "a@x.com", "pw123456")
	u, t1, err := f.auth.Login(ctx, LoginInput{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)
	// A second token issued outside the login flow survives logout.
	other, err := f.issuer.Issue(ctx, u.ID, nil, time.Hour)
	require.NoError(t, err)

	user, tok, err := f.issuer.Resolve(ctx, t1.PlainText)
	require.NoError(t, err)
	require.NoError(t, f.auth.Logout(ctx, Principal{User: user, Token: tok}))

	_, _, err = f.issuer.Resolve(ctx, t1.PlainText)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, _, err = f.issuer.Resolve(ctx, other.PlainText)
	assert.NoError(t, err)
}

func TestAuthService_AliceScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice, err := f.auth.Register(ctx, RegisterInput{Name: "Alice", Email: "a@x.com", Password: "pw123456", PasswordConfirmation: "pw123456"})
	require.NoError(t, err)
	assert.False(t, alice.IsVerified())

	_, _, err = f.auth.Login(ctx, LoginInput{Email: "a@x.com", Password: "pw123456"})
	require.ErrorIs(t, err, ErrEmailNotVerified)

	id, hash, sig := linkParts(t, f.pub.last(t).URL)
	assert.Equal(t, fmt.Sprint(alice.ID), id)
	out, err := f.verify.Verify(ctx, id, hash, sig)
	require.NoError(t, err)
	require.Equal(t, VerifyOutcomeVerified, out)

	user, t1, err := f.auth.Login(ctx, LoginInput{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)
	_, tok1, err := f.issuer.Resolve(ctx, t1.PlainText)
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, StateOf(&user, &tok1, f.clock.Now()))

	t2, err := f.auth.Refresh(ctx, Principal{User: user, Token: tok1})
	require.NoError(t, err)

	_, _, err = f.issuer.Resolve(ctx, t1.PlainText)
	assert.ErrorIs(t, err, ErrInvalidToken)
	me, _, err := f.issuer.Resolve(ctx, t2.PlainText)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, me.ID)
	assert.Equal(t, "a@x.com", me.Email)
	assert.Equal(t, "Alice", me.Name)
}

func TestStateOf(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	pending := model.User{ID: 1}
	verified := model.User{ID: 1, EmailVerifiedAt: &now}
	live := model.AccessToken{UserID: 1, ExpiresAt: now.Add(time.Hour)}
	stale := model.AccessToken{UserID: 1, ExpiresAt: now.Add(-time.Second)}
	foreign := model.AccessToken{UserID: 2, ExpiresAt: now.Add(time.Hour)}

	assert.Equal(t, StateAnonymous, StateOf(nil, nil, now))
	assert.Equal(t, StatePendingVerification, StateOf(&pending, &live, now))
	assert.Equal(t, StateAuthenticatable, StateOf(&verified, nil, now))
	assert.Equal(t, StateAuthenticatable, StateOf(&verified, &stale, now))
	assert.Equal(t, StateAuthenticatable, StateOf(&verified, &foreign, now))
	assert.Equal(t, StateAuthenticated, StateOf(&verified, &live, now))
	assert.Equal(t, "authenticated", StateAuthenticated.String())
}
