package apiclient

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/synthdesk/internal/errors"
	"github.com/vango-dev/synthdesk/pkg/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestGetCachesWithinTTL(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{"n": calls.Load()})
	}))
	defer srv.Close()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := New(srv.URL, WithClock(clock.Now), WithCacheTTL(time.Minute))
	ctx := context.Background()

	first, err := c.Get(ctx, "/models")
	require.NoError(t, err)
	second, err := c.Get(ctx, "/models")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, calls.Load())

	clock.Advance(61 * time.Second)
	third, err := c.Get(ctx, "/models")
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, map[string]any{"n": float64(2)}, third)
}

func TestNoCacheAndInvalidate(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, []any{})
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	_, err := c.Get(ctx, "/models")
	require.NoError(t, err)
	_, err = c.Get(ctx, "/models", NoCache())
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())

	_, err = c.Get(ctx, "/rules")
	require.NoError(t, err)
	assert.Equal(t, 1, c.InvalidateCache("/models"))
	assert.Equal(t, 1, c.cache.len())

	c.ClearCache()
	assert.Equal(t, 0, c.cache.len())
}

func TestPostIsNotCached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.JSONEq(t, `{"name":"m1"}`, string(body))
		writeJSON(w, http.StatusCreated, map[string]any{"id": "1"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	for i := 0; i < 2; i++ {
		v, err := c.Post(context.Background(), "/models", map[string]string{"name": "m1"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"id": "1"}, v)
	}
	assert.EqualValues(t, 2, calls.Load())
}

func TestConcurrentIdenticalRequestsShareOneCall(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			time.Sleep(50 * time.Millisecond)
		}
		<-release
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}))
	defer srv.Close()

	c := New(srv.URL)
	var wg sync.WaitGroup
	results := make([]any, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Get(context.Background(), "/dashboard/stats")
		}(i)
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, map[string]any{"ok": true}, results[i])
	}
}

func TestCancelledCallerLeavesSharedCallRunning(t *testing.T) {
	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			close(entered)
		}
		<-release
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx, "/models")
		firstErr <- err
	}()
	<-entered

	type result struct {
		v   any
		err error
	}
	second := make(chan result, 1)
	go func() {
		v, err := c.Get(context.Background(), "/models")
		second <- result{v, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	err := <-firstErr
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, map[string]any{"ok": true}, got.v)
	assert.EqualValues(t, 1, calls.Load())
}

func TestRefreshOnUnauthorized(t *testing.T) {
	var refreshes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh":
			refreshes.Add(1)
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			assert.Equal(t, "refresh-1", body["refreshToken"])
			writeJSON(w, http.StatusOK, map[string]string{"token": "access-2", "refreshToken": "refresh-2"})
		case "/auth/me":
			if r.Header.Get("Authorization") != "Bearer access-2" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "expired"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"name": "ada"})
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, storage.SaveTokens(ctx, store, storage.Tokens{Access: "access-1", Refresh: "refresh-1"}))

	c := New(srv.URL, WithStore(store))
	v, err := c.Get(ctx, "/auth/me")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "ada"}, v)
	assert.EqualValues(t, 1, refreshes.Load())

	tokens, err := storage.LoadTokens(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, storage.Tokens{Access: "access-2", Refresh: "refresh-2"}, tokens)
}

func TestRefreshFailureClearsTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "nope"})
	}))
	defer srv.Close()

	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, storage.SaveTokens(ctx, store, storage.Tokens{Access: "a", Refresh: "r"}))

	c := New(srv.URL, WithStore(store))
	_, err := c.Get(ctx, "/models")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CategoryHTTP))

	var herr *HTTPError
	require.True(t, stderrors.As(err, &herr))
	assert.Equal(t, http.StatusUnauthorized, herr.Status)

	assert.False(t, c.Authenticated(ctx))
}

type flakyTransport struct {
	failures atomic.Int32
	calls    atomic.Int32
	next     http.RoundTripper
}

func (f *flakyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	f.calls.Add(1)
	if f.failures.Add(-1) >= 0 {
		return nil, stderrors.New("connection reset")
	}
	return f.next.RoundTrip(r)
}

func TestNetworkFailureRetriedOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, "ok")
	}))
	defer srv.Close()

	tr := &flakyTransport{next: http.DefaultTransport}
	tr.failures.Store(1)
	c := New(srv.URL, WithHTTPClient(&http.Client{Transport: tr}))

	v, err := c.Get(context.Background(), "/health")
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.EqualValues(t, 2, tr.calls.Load())

	tr.failures.Store(2)
	_, err = c.Get(context.Background(), "/other")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CategoryNetwork))
	assert.EqualValues(t, 4, tr.calls.Load())
}

func TestNoRetry(t *testing.T) {
	tr := &flakyTransport{next: http.DefaultTransport}
	tr.failures.Store(1)
	c := New("http://api.invalid", WithHTTPClient(&http.Client{Transport: tr}))

	_, err := c.Get(context.Background(), "/x", NoRetry())
	require.Error(t, err)
	assert.EqualValues(t, 1, tr.calls.Load())
}

func TestHTTPErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "name is required"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Post(context.Background(), "/models", map[string]string{})
	var herr *HTTPError
	require.True(t, stderrors.As(err, &herr))
	assert.Equal(t, http.StatusUnprocessableEntity, herr.Status)
	assert.Equal(t, "name is required", herr.Message())
	assert.Contains(t, herr.Error(), "HTTP 422")
	assert.EqualValues(t, 1, calls.Load())
}

func TestResponseContentTypes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json":
			w.Header().Set("Content-Type", "application/problem+json")
			_, _ = w.Write([]byte(`{"a":1}`))
		case "/text":
			w.Header().Set("Content-Type", "text/csv; charset=utf-8")
			_, _ = w.Write([]byte("a,b\n1,2\n"))
		case "/binary":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write([]byte{0x00, 0x01})
		case "/broken":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"a":`))
		case "/empty":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	v, err := c.Get(ctx, "/json")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, v)

	v, err = c.Get(ctx, "/text")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", v)

	v, err = c.Get(ctx, "/binary")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x01}, v)

	v, err = c.Get(ctx, "/empty")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = c.Get(ctx, "/broken")
	require.Error(t, err)
	assert.Equal(t, "E103", errors.FromError(err, "").Code)
}

func TestLoginAndLogout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			writeJSON(w, http.StatusOK, map[string]any{"access_token": "t1", "refresh_token": "r1", "user": "ada"})
		case "/auth/logout":
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	c := New(srv.URL)

	_, err := c.Login(ctx, "/auth/login", map[string]string{"email": "a@b.c", "password": "x"})
	require.NoError(t, err)
	tokens, err := storage.LoadTokens(ctx, c.Store())
	require.NoError(t, err)
	assert.Equal(t, storage.Tokens{Access: "t1", Refresh: "r1"}, tokens)

	require.NoError(t, c.Logout(ctx, "/auth/logout"))
	assert.False(t, c.Authenticated(ctx))
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "/models/a%2Fb/export", Endpoint("/models/:id/export", map[string]string{"id": "a/b"}))
	assert.Equal(t, "/models/:id", Endpoint("/models/:id", nil))

	c := New("http://api.local", WithEndpoints(map[string]string{"model": "/models/:id"}))
	got, err := c.EndpointFor("model", map[string]string{"id": "42"})
	require.NoError(t, err)
	assert.Equal(t, "/models/42", got)

	_, err = c.EndpointFor("model", nil)
	assert.Error(t, err)
	_, err = c.EndpointFor("missing", nil)
	assert.Error(t, err)

	got, err = c.EndpointFor("models", nil)
	require.NoError(t, err)
	assert.Equal(t, "/models", got, "built-in templates stay available")
}

func TestDecode(t *testing.T) {
	type model struct {
		ID   string `json:"id"`
		Rows int    `json:"rows"`
	}
	m, err := Decode[model](map[string]any{"id": "m1", "rows": float64(10)})
	require.NoError(t, err)
	assert.Equal(t, model{ID: "m1", Rows: 10}, m)
}
