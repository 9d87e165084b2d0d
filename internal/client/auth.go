package client

import (
	"context"
	"errors"
	"sync"

	"github.com/iliyamo/authflow/internal/logging"
)

// ErrSubmitPending is returned when a login or registration is started
// while another one is still in flight.
var ErrSubmitPending = errors.New("client: a submission is already in progress")

// Auth holds the client-side authentication state.  It starts out loading
// until Restore has read the stored session.
type Auth struct {
	api   *API
	store Store
	log   logging.Logger

	mu      sync.Mutex
	user    *User
	loading bool
	pending bool
}

func NewAuth(api *API, store Store, log logging.Logger) *Auth {
	if log == nil {
		log = logging.Discard()
	}
	return &Auth{api: api, store: store, log: log.With("component", "client-auth"), loading: true}
}

// Restore loads the stored session.  A missing or corrupt session leaves
// the user logged out.
func (a *Auth) Restore() error {
	sess, ok, err := LoadSession(a.store)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loading = false
	if err != nil {
		return err
	}
	if ok {
		u := sess.User
		a.user = &u
	} else {
		a.user = nil
	}
	return nil
}

// User returns the logged-in user.
func (a *Auth) User() (User, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.user == nil {
		return User{}, false
	}
	return *a.user, true
}

func (a *Auth) LoggedIn() bool {
	_, ok := a.User()
	return ok
}

func (a *Auth) Loading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loading
}

func (a *Auth) begin() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending {
		return ErrSubmitPending
	}
	a.pending = true
	return nil
}

func (a *Auth) end() {
	a.mu.Lock()
	a.pending = false
	a.mu.Unlock()
}

// Login authenticates and stores the session.
func (a *Auth) Login(ctx context.Context, email, password string) (User, error) {
	if err := a.begin(); err != nil {
		return User{}, err
	}
	defer a.end()

	u, token, err := a.api.Login(ctx, email, password)
	if err != nil {
		return User{}, err
	}
	if err := SaveSession(a.store, token, u); err != nil {
		return User{}, err
	}
	a.setUser(&u)
	return u, nil
}

// Register creates an account.  The server issues no token, so the user
// stays logged out until the email is verified and they log in.
func (a *Auth) Register(ctx context.Context, in RegisterRequest) (string, error) {
	if err := a.begin(); err != nil {
		return "", err
	}
	defer a.end()
	return a.api.Register(ctx, in)
}

// Logout asks the server to revoke the token and always clears local
// state, even when the server call fails.
func (a *Auth) Logout(ctx context.Context) error {
	if err := a.api.Logout(ctx); err != nil {
		a.log.Warn(ctx, "server logout failed", "error", err)
	}
	return a.clearLocal()
}

// Refresh swaps the stored token for a new one.
func (a *Auth) Refresh(ctx context.Context) error {
	token, err := a.api.Refresh(ctx)
	if err != nil {
		return a.dropOnUnauthorized(err)
	}
	return a.store.Set(TokenKey, token)
}

// Me fetches the current user and refreshes the cached copy.
func (a *Auth) Me(ctx context.Context) (User, error) {
	u, err := a.api.Me(ctx)
	if err != nil {
		return User{}, a.dropOnUnauthorized(err)
	}
	token, ok, err := a.store.Get(TokenKey)
	if err == nil && ok {
		if err := SaveSession(a.store, token, u); err != nil {
			return User{}, err
		}
	}
	a.setUser(&u)
	return u, nil
}

func (a *Auth) dropOnUnauthorized(err error) error {
	if IsUnauthorized(err) {
		if cerr := a.clearLocal(); cerr != nil {
			a.log.Warn(context.Background(), "clear session", "error", cerr)
		}
	}
	return err
}

func (a *Auth) clearLocal() error {
	a.setUser(nil)
	return ClearSession(a.store)
}

func (a *Auth) setUser(u *User) {
	a.mu.Lock()
	a.user = u
	a.mu.Unlock()
}
