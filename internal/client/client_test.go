package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/authflow/internal/logging"
)

var alice = User{ID: 1, Name: "Alice", Email: "a@x.com"}

// fakeAPI imitates the authflow API closely enough for the client.
type fakeAPI struct {
	mu           sync.Mutex
	token        string
	issued       int
	logoutStatus int
	calls        map[string]int

	loginEntered chan struct{}
	loginGate    chan struct{}
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{calls: map[string]int{}}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", f.login)
	mux.HandleFunc("POST /api/register", func(w http.ResponseWriter, r *http.Request) {
		f.count("register")
		writeJSON(w, http.StatusCreated, map[string]any{"message": "Registration successful. Please check your email to verify your account."})
	})
	mux.HandleFunc("GET /api/me", func(w http.ResponseWriter, r *http.Request) {
		f.count("me")
		if !f.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthenticated."})
			return
		}
		writeJSON(w, http.StatusOK, alice)
	})
	mux.HandleFunc("POST /api/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.count("refresh")
		if !f.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Token expired."})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"token": f.issue()})
	})
	mux.HandleFunc("POST /api/logout", func(w http.ResponseWriter, r *http.Request) {
		f.count("logout")
		f.mu.Lock()
		status := f.logoutStatus
		f.mu.Unlock()
		if status != 0 {
			writeJSON(w, status, map[string]any{"message": "Server Error"})
			return
		}
		if !f.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthenticated."})
			return
		}
		f.mu.Lock()
		f.token = ""
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"message": "Logged out"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) login(w http.ResponseWriter, r *http.Request) {
	f.count("login")
	f.mu.Lock()
	entered, gate := f.loginEntered, f.loginGate
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
		<-gate
	}
	var in struct{ Email, Password string }
	_ = json.NewDecoder(r.Body).Decode(&in)
	if in.Password != "pw123456" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "The provided credentials are incorrect.",
			"errors":  map[string][]string{"email": {"The provided credentials are incorrect."}},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": alice, "token": f.issue()})
}

func (f *fakeAPI) issue() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued++
	f.token = string(rune('0'+f.issued)) + "|secret"
	return f.token
}

func (f *fakeAPI) authorized(r *http.Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token != "" && r.Header.Get("Authorization") == "Bearer "+f.token
}

func (f *fakeAPI) count(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeAPI) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) setLogoutStatus(status int) {
	f.mu.Lock()
	f.logoutStatus = status
	f.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newAuth(t *testing.T, srv *httptest.Server, store Store) *Auth {
	t.Helper()
	a := NewAuth(NewAPI(srv.URL+"/api", store), store, logging.Discard())
	require.NoError(t, a.Restore())
	return a
}

// fakeClock fires timers only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	c    *fakeClock
	at   time.Time
	fn   func()
	done bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	was := !t.done
	t.done = true
	return was
}

// Advance moves time forward and runs every timer that became due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []func()
	for _, t := range c.timers {
		if !t.done && !t.at.After(c.now) {
			t.done = true
			due = append(due, t.fn)
		}
	}
	c.mu.Unlock()
	for _, fn := range due {
		fn()
	}
}
