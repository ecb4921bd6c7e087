package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/leaptext/internal/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, ttl time.Duration) (*Registry, *int) {
	t.Helper()
	created := 0
	r := New(Config{
		Store: sessions.NewCookieStore([]byte("test-secret-key-32-bytes-long!!")),
		Factory: func() *orchestrator.Orchestrator {
			created++
			return orchestrator.New(orchestrator.Config{})
		},
		TTL: ttl,
	})
	return r, &created
}

// withCookies copies the cookies set on rec into a new request.
func withCookies(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestAcquire_ReusesSessionFromCookie(t *testing.T) {
	r, created := newTestRegistry(t, time.Minute)

	rec := httptest.NewRecorder()
	id1, o1, err := r.Acquire(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NotEmpty(t, id1)
	require.NotEmpty(t, rec.Result().Cookies(), "new session should set a cookie")

	id2, o2, err := r.Acquire(httptest.NewRecorder(), withCookies(rec))
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Same(t, o1, o2)
	assert.Equal(t, 1, *created)
	assert.Equal(t, 1, r.Len())
}

func TestAcquire_SeparateBrowsersGetSeparateSessions(t *testing.T) {
	r, _ := newTestRegistry(t, time.Minute)

	_, o1, err := r.Acquire(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	_, o2, err := r.Acquire(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	assert.NotSame(t, o1, o2)
	assert.Equal(t, 2, r.Len())
}

func TestLookup(t *testing.T) {
	r, _ := newTestRegistry(t, time.Minute)

	_, ok := r.Lookup(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok, "no cookie, no session")

	rec := httptest.NewRecorder()
	_, o, err := r.Acquire(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	got, ok := r.Lookup(withCookies(rec))
	require.True(t, ok)
	assert.Same(t, o, got)
}

func TestSweep_EvictsIdleSessions(t *testing.T) {
	r, created := newTestRegistry(t, time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	recOld := httptest.NewRecorder()
	_, _, err := r.Acquire(recOld, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	now = now.Add(45 * time.Second)
	_, _, err = r.Acquire(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, 1, r.Len())

	// The evicted browser gets a fresh orchestrator under its old id.
	_, _, err = r.Acquire(httptest.NewRecorder(), withCookies(recOld))
	require.NoError(t, err)
	assert.Equal(t, 3, *created)
}

func TestRun_ClosesSessionsOnShutdown(t *testing.T) {
	r, _ := newTestRegistry(t, time.Minute)
	_, _, err := r.Acquire(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, time.Hour) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 0, r.Len())
}
