package lms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/inpyohongb/kurlyro/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

// fakeLMS serves the login and commutes endpoints. pages maps page number
// to its handler; loginCount and a per-login token sequence let tests
// observe re-authentication.
type fakeLMS struct {
	loginCount atomic.Int64
	pages      func(w http.ResponseWriter, r *http.Request, page int)
}

func (f *fakeLMS) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+loginPath, func(w http.ResponseWriter, r *http.Request) {
		var creds struct {
			LoginID  string `json:"loginId"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.LoginID == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		n := f.loginCount.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"token": fmt.Sprintf("tok%d", n)},
		})
	})
	mux.HandleFunc("GET "+commutesPath, func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		f.pages(w, r, page)
	})
	return mux
}

func pageBody(totalPages int, names ...string) []byte {
	content := make([]map[string]any, len(names))
	for i, n := range names {
		content[i] = map[string]any{"name": n}
	}
	b, _ := json.Marshal(map[string]any{
		"data": map[string]any{"content": content, "totalPages": totalPages},
	})
	return b
}

func newTestClient(t *testing.T, f *fakeLMS, query Query) (*Client, *httptest.Server) {
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	session := NewSession(srv.URL, Credentials{LoginID: "id", Password: "pw"}, testLogger())
	return NewClient(session, query, testRetryPolicy(), testLogger()), srv
}

func names(records []domain.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i], _ = r["name"].(string)
	}
	return out
}

func TestCollectDayMergesPagesInAscendingOrder(t *testing.T) {
	f := &fakeLMS{}
	f.pages = func(w http.ResponseWriter, r *http.Request, page int) {
		switch page {
		case 1:
			w.Write(pageBody(3, "a"))
		case 2:
			// Completes last; must still land between pages 1 and 3.
			time.Sleep(100 * time.Millisecond)
			w.Write(pageBody(3, "b"))
		case 3:
			w.Write(pageBody(3, "c"))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}
	c, _ := newTestClient(t, f, Query{Cluster: "CC03", Center: "GPM1", WorkPart: "IB", Size: 1})

	res, err := c.CollectDay(context.Background(), "2026-08-26")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	got := names(res.Records)
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("expected [a b c], got %v", got)
	}
	if res.TotalPages != 3 || len(res.DroppedPages) != 0 {
		t.Fatalf("unexpected result meta: %+v", res)
	}
}

func TestCollectDayDropsFailedNonFirstPage(t *testing.T) {
	f := &fakeLMS{}
	f.pages = func(w http.ResponseWriter, r *http.Request, page int) {
		if page == 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write(pageBody(3, fmt.Sprintf("p%d", page)))
	}
	c, _ := newTestClient(t, f, Query{Size: 1})

	res, err := c.CollectDay(context.Background(), "2026-08-26")
	if err != nil {
		t.Fatalf("a dropped non-first page must not fail the collection: %v", err)
	}
	got := names(res.Records)
	if len(got) != 2 || got[0] != "p1" || got[1] != "p2" {
		t.Fatalf("expected [p1 p2], got %v", got)
	}
	if len(res.DroppedPages) != 1 || res.DroppedPages[0] != 3 {
		t.Fatalf("expected dropped page 3, got %v", res.DroppedPages)
	}
}

func TestCollectDayFirstPageFailureIsFatal(t *testing.T) {
	f := &fakeLMS{}
	f.pages = func(w http.ResponseWriter, r *http.Request, page int) {
		w.WriteHeader(http.StatusInternalServerError)
	}
	c, _ := newTestClient(t, f, Query{Size: 1})

	_, err := c.CollectDay(context.Background(), "2026-08-26")
	if !errors.Is(err, domain.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
}

func TestFetchPageRetriesExactlyBudget(t *testing.T) {
	var attempts atomic.Int64
	f := &fakeLMS{}
	f.pages = func(w http.ResponseWriter, r *http.Request, page int) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	c, _ := newTestClient(t, f, Query{Size: 1})

	_, err := c.fetchPage(context.Background(), "2026-08-26", 1)
	if err == nil {
		t.Fatal("expected error after retry budget")
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", got)
	}
}

func TestFetchPageDoesNotRetry4xx(t *testing.T) {
	var attempts atomic.Int64
	f := &fakeLMS{}
	f.pages = func(w http.ResponseWriter, r *http.Request, page int) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}
	c, _ := newTestClient(t, f, Query{Size: 1})

	_, err := c.fetchPage(context.Background(), "2026-08-26", 1)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest {
		t.Fatalf("expected StatusError 400, got %v", err)
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("4xx must not be retried, got %d attempts", got)
	}
}

func TestFetchPageDoesNotRetryMalformedBody(t *testing.T) {
	var attempts atomic.Int64
	f := &fakeLMS{}
	f.pages = func(w http.ResponseWriter, r *http.Request, page int) {
		attempts.Add(1)
		w.Write([]byte("not json"))
	}
	c, _ := newTestClient(t, f, Query{Size: 1})

	_, err := c.fetchPage(context.Background(), "2026-08-26", 1)
	if err == nil {
		t.Fatal("expected error for a malformed body")
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("a deterministic decode failure must not be retried, got %d attempts", got)
	}
}

func TestRetryPolicyZeroValueRunsOnce(t *testing.T) {
	var attempts atomic.Int64
	err := RetryPolicy{}.Do(context.Background(), func() error {
		attempts.Add(1)
		return &StatusError{Code: http.StatusInternalServerError}
	})
	if err == nil {
		t.Fatal("expected the operation error back")
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("zero-value policy must run exactly once, got %d attempts", got)
	}
}

func TestSessionConcurrentReauthSingleRefresh(t *testing.T) {
	f := &fakeLMS{}
	f.pages = func(w http.ResponseWriter, r *http.Request, page int) {
		// Only the re-issued token is accepted; the first is stale at once.
		if r.Header.Get("Authorization") != "Bearer tok2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write(pageBody(1, "a"))
	}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	session := NewSession(srv.URL, Credentials{LoginID: "id", Password: "pw"}, testLogger())

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = session.Get(context.Background(), commutesPath, url.Values{})
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}
	if got := f.loginCount.Load(); got != 2 {
		t.Fatalf("stale token must cost exactly one refresh (2 logins total), got %d", got)
	}
}

func TestSessionReauthenticatesOn401(t *testing.T) {
	f := &fakeLMS{}
	f.pages = func(w http.ResponseWriter, r *http.Request, page int) {
		// The first token is stale; only the re-issued one is accepted.
		if r.Header.Get("Authorization") != "Bearer tok2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write(pageBody(1, "a"))
	}
	c, _ := newTestClient(t, f, Query{Size: 1})

	res, err := c.CollectDay(context.Background(), "2026-08-26")
	if err != nil {
		t.Fatalf("collect after re-auth: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(res.Records))
	}
	if got := f.loginCount.Load(); got != 2 {
		t.Fatalf("expected exactly 2 logins (initial + refresh), got %d", got)
	}
}

func TestSessionLoginRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+loginPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	session := NewSession(srv.URL, Credentials{LoginID: "id", Password: "bad"}, testLogger())
	c := NewClient(session, Query{Size: 1}, testRetryPolicy(), testLogger())

	_, err := c.CollectDay(context.Background(), "2026-08-26")
	if !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestQueryValues(t *testing.T) {
	q := Query{Cluster: "CC03", Center: "GPM1", WorkPart: "IB", Size: 100}
	v := q.values("2026-08-26", 2)
	if v.Get("page") != "2" || v.Get("size") != "100" {
		t.Fatalf("unexpected paging params: %v", v)
	}
	if v.Get("startDate") != "2026-08-26" || v.Get("endDate") != "2026-08-26" {
		t.Fatalf("unexpected date params: %v", v)
	}
	if v.Get("isEndWork") != "false" {
		t.Fatalf("work-status filters must always be sent: %v", v)
	}

	q.WorkPart = ""
	if v := q.values("2026-08-26", 1); v.Has("workPart") {
		t.Fatal("workPart must be omitted for client-side filtering")
	}
}
