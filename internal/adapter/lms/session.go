package lms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/inpyohongb/kurlyro/internal/domain"
)

const loginPath = "/v1/admin-accounts/login"

// Credentials holds the LMS login pair. Never logged.
type Credentials struct {
	LoginID  string
	Password string
}

// Session owns the bearer token for the LMS API. It logs in lazily on the
// first request, attaches the token to every call, and re-authenticates in
// place when the API answers 401. The token is guarded by a mutex plus a
// version counter so concurrent page workers that observe the same stale
// token trigger at most one re-login.
type Session struct {
	baseURL string
	creds   Credentials
	http    *http.Client
	log     *slog.Logger

	mu      sync.Mutex
	token   string
	version uint64
}

func NewSession(baseURL string, creds Credentials, log *slog.Logger) *Session {
	if baseURL == "" {
		baseURL = "https://api-lms.kurly.com"
	}
	return &Session{
		baseURL: baseURL,
		creds:   creds,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

// current returns the token and its version. An empty token means no login
// has happened yet.
func (s *Session) current() (string, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.version
}

// refresh replaces the token after a caller observed staleVersion as
// unusable. If another caller already replaced it, the newer token is
// returned without a second login.
func (s *Session) refresh(ctx context.Context, staleVersion uint64) (string, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != staleVersion && s.token != "" {
		return s.token, s.version, nil
	}
	token, err := s.login(ctx)
	if err != nil {
		return "", 0, err
	}
	s.token = token
	s.version++
	return s.token, s.version, nil
}

// login performs the credential exchange. Called with s.mu held.
func (s *Session) login(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"loginId":  s.creds.LoginID,
		"password": s.creds.Password,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: login request: %v", domain.ErrAuth, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: login rejected with status %d", domain.ErrAuth, resp.StatusCode)
	}

	var out struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decoding login response: %v", domain.ErrAuth, err)
	}
	if out.Data.Token == "" {
		return "", fmt.Errorf("%w: login response carried no token", domain.ErrAuth)
	}
	s.log.Info("login successful")
	return out.Data.Token, nil
}

// Get issues one authenticated GET and returns the response body.
// A 401 invalidates the current token and the request is retried once with
// a fresh one; a second 401 is reported as an auth failure. Other non-2xx
// statuses come back as *StatusError for the caller's retry policy.
func (s *Session) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	token, version := s.current()
	if token == "" {
		var err error
		token, version, err = s.refresh(ctx, version)
		if err != nil {
			return nil, err
		}
	}

	body, status, err := s.do(ctx, path, query, token)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		token, _, err = s.refresh(ctx, version)
		if err != nil {
			return nil, err
		}
		body, status, err = s.do(ctx, path, query, token)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: request still unauthorized after re-login", domain.ErrAuth)
		}
	}
	if status < 200 || status > 299 {
		return nil, &StatusError{Code: status, Body: string(body)}
	}
	return body, nil
}

func (s *Session) do(ctx context.Context, path string, query url.Values, token string) ([]byte, int, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, 0, err
	}
	u.Path = path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

// StatusError is a non-2xx, non-401 response. The retry policy treats 5xx
// as transient and everything else as permanent.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256]
	}
	return fmt.Sprintf("lms: unexpected status %d: %s", e.Code, body)
}
