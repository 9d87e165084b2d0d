package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
	Errors  map[string][]string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusUnauthorized
}

// RegisterRequest is the registration form.
type RegisterRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type messageResp struct {
	Message string `json:"message"`
}

type loginResp struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type tokenResp struct {
	Token string `json:"token"`
}

// API is a JSON client for the authflow REST API.  The bearer token is
// read from Store on every request.
type API struct {
	BaseURL string
	HTTP    *http.Client
	Store   Store
}

func NewAPI(baseURL string, store Store) *API {
	return &API{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		Store:   store,
	}
}

func (a *API) Register(ctx context.Context, in RegisterRequest) (string, error) {
	var out messageResp
	err := a.do(ctx, http.MethodPost, "/register", in, &out)
	return out.Message, err
}

func (a *API) Login(ctx context.Context, email, password string) (User, string, error) {
	var out loginResp
	err := a.do(ctx, http.MethodPost, "/login", map[string]string{"email": email, "password": password}, &out)
	return out.User, out.Token, err
}

func (a *API) Logout(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/logout", nil, nil)
}

func (a *API) Refresh(ctx context.Context) (string, error) {
	var out tokenResp
	err := a.do(ctx, http.MethodPost, "/refresh", nil, &out)
	return out.Token, err
}

func (a *API) Me(ctx context.Context) (User, error) {
	var out User
	err := a.do(ctx, http.MethodGet, "/me", nil, &out)
	return out, err
}

func (a *API) Dashboard(ctx context.Context) (string, error) {
	var out messageResp
	err := a.do(ctx, http.MethodGet, "/dashboard", nil, &out)
	return out.Message, err
}

func (a *API) ResendVerification(ctx context.Context, email string) (string, error) {
	var out messageResp
	err := a.do(ctx, http.MethodPost, "/email/verification-notification", map[string]string{"email": email}, &out)
	return out.Message, err
}

func (a *API) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.Store != nil {
		if tok, ok, err := a.Store.Get(TokenKey); err == nil && ok && tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := a.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ae := &APIError{Status: resp.StatusCode}
		var payload struct {
			Message string              `json:"message"`
			Errors  map[string][]string `json:"errors"`
		}
		if json.Unmarshal(data, &payload) == nil {
			ae.Message = payload.Message
			ae.Errors = payload.Errors
		}
		return ae
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
