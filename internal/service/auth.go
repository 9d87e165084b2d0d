package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/iliyamo/authflow/internal/logging"
	"github.com/iliyamo/authflow/internal/model"
	"github.com/iliyamo/authflow/internal/repository"
	"github.com/iliyamo/authflow/internal/utils"
)

// Verifier triggers delivery of a verification link.  It must not fail
// the caller; delivery problems are the implementation's to log.
type Verifier interface {
	SendVerification(ctx context.Context, user model.User)
}

// RegisterInput is the registration request body.
type RegisterInput struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// Validate checks field rules that do not need the store.  Email
// uniqueness is enforced by Create.  Lengths count characters, matching
// the utf8mb4 columns.
func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name,
			validation.Required.Error("The name field is required."),
			validation.RuneLength(0, 255).Error("The name may not be greater than 255 characters."),
		),
		validation.Field(&in.Email,
			validation.Required.Error("The email field is required."),
			validation.RuneLength(0, 255).Error("The email may not be greater than 255 characters."),
			is.Email.Error("The email must be a valid email address."),
		),
		validation.Field(&in.Password,
			validation.Required.Error("The password field is required."),
			validation.RuneLength(8, 0).Error("The password must be at least 8 characters."),
			validation.By(func(interface{}) error {
				if len(in.Password) > maxPasswordBytes {
					return errors.New("The password may not be greater than 72 bytes.")
				}
				return nil
			}),
			validation.By(func(interface{}) error {
				if in.Password != in.PasswordConfirmation {
					return errors.New("The password confirmation does not match.")
				}
				return nil
			}),
		),
	)
}

// LoginInput is the login request body.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in LoginInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email,
			validation.Required.Error("The email field is required."),
			is.Email.Error("The email must be a valid email address."),
		),
		validation.Field(&in.Password, validation.Required.Error("The password field is required.")),
	)
}

// AuthService drives the session state machine: register, login, refresh
// and logout.
type AuthService struct {
	Users      UserStore
	Tokens     *TokenIssuer
	Verifier   Verifier
	Log        logging.Logger
	BcryptCost int
	TokenTTL   time.Duration

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(users UserStore, tokens *TokenIssuer, v Verifier, log logging.Logger, cost int, ttl time.Duration) *AuthService {
	return &AuthService{
		Users:      users,
		Tokens:     tokens,
		Verifier:   v,
		Log:        log.With("component", "auth"),
		BcryptCost: cost,
		TokenTTL:   ttl,
	}
}

// Register creates an unverified account and starts verification.  No
// token is issued.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	if err := in.Validate(); err != nil {
		return model.User{}, FromValidation(err)
	}
	hash, err := utils.HashPassword(in.Password, s.BcryptCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.Users.Create(ctx, in.Name, in.Email, hash)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return model.User{}, newValidationError("email", "The email has already been taken.")
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	s.Log.Info(ctx, "user registered", "user_id", user.ID)
	s.Verifier.SendVerification(ctx, user)
	return user, nil
}

// Login authenticates credentials and issues the user's single active
// token.  Unknown email and wrong password are indistinguishable.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (model.User, IssuedToken, error) {
	if err := in.Validate(); err != nil {
		return model.User{}, IssuedToken{}, FromValidation(err)
	}
	user, err := s.Users.GetByEmail(ctx, in.Email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return model.User{}, IssuedToken{}, fmt.Errorf("load user: %w", err)
		}
		// Spend the same bcrypt time as a real comparison.
		utils.VerifyPassword(s.dummy(), in.Password)
		return model.User{}, IssuedToken{}, ErrInvalidCredentials
	}
	if !utils.VerifyPassword(user.PasswordHash, in.Password) {
		return model.User{}, IssuedToken{}, ErrInvalidCredentials
	}
	if !user.IsVerified() {
		// No session can exist yet; tear down anyway.
		if err := s.Tokens.RevokeAll(ctx, user.ID); err != nil {
			s.Log.Warn(ctx, "unverified login teardown", "user_id", user.ID, "error", err)
		}
		return model.User{}, IssuedToken{}, ErrEmailNotVerified
	}
	if err := s.Tokens.RevokeAll(ctx, user.ID); err != nil {
		return model.User{}, IssuedToken{}, err
	}
	tok, err := s.Tokens.Issue(ctx, user.ID, []string{model.AbilityAll}, s.TokenTTL)
	if err != nil {
		return model.User{}, IssuedToken{}, err
	}
	s.Log.Info(ctx, "user logged in", "user_id", user.ID, "token_id", tok.ID)
	return user, tok, nil
}

// Logout revokes only the token the caller presented.
func (s *AuthService) Logout(ctx context.Context, p Principal) error {
	if err := s.Tokens.RevokeCurrent(ctx, p.Token); err != nil {
		return err
	}
	s.Log.Info(ctx, "user logged out", "user_id", p.User.ID, "token_id", p.Token.ID)
	return nil
}

// Refresh swaps the presented token for a new one.  The old token stops
// working before the new one exists.
func (s *AuthService) Refresh(ctx context.Context, p Principal) (IssuedToken, error) {
	if err := s.Tokens.RevokeCurrent(ctx, p.Token); err != nil {
		return IssuedToken{}, err
	}
	tok, err := s.Tokens.Issue(ctx, p.User.ID, []string{model.AbilityAll}, s.TokenTTL)
	if err != nil {
		return IssuedToken{}, err
	}
	s.Log.Info(ctx, "token refreshed", "user_id", p.User.ID, "old_token_id", p.Token.ID, "token_id", tok.ID)
	return tok, nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = utils.HashPassword("authflow-timing-equaliser", s.BcryptCost)
	})
	return s.dummyHash
}
