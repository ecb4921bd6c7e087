// Package features provides shared test utilities for UI feature tests.
package features

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaptext/internal/backend"
	"github.com/leapstack-labs/leaptext/internal/orchestrator"
	"github.com/leapstack-labs/leaptext/internal/testutil"
	"github.com/leapstack-labs/leaptext/internal/ui/registry"
)

// TestFixture holds all dependencies needed for UI handler tests.
type TestFixture struct {
	Backend      *testutil.FakeBackend
	Client       *backend.Client
	SessionStore *sessions.CookieStore
	Registry     *registry.Registry
}

// SetupTestFixture creates a fake backend, a client for it and a session
// registry whose orchestrators use that client.
func SetupTestFixture(t *testing.T) *TestFixture {
	t.Helper()

	logger := testutil.NewTestLogger(t)
	fake := testutil.NewFakeBackend(t)

	client, err := backend.New(backend.Config{BaseURL: fake.URL, Logger: logger})
	require.NoError(t, err)

	store := NewTestSessionStore()
	reg := registry.New(registry.Config{
		Store: store,
		Factory: func() *orchestrator.Orchestrator {
			return orchestrator.New(orchestrator.Config{Backend: client, Logger: logger})
		},
		Logger: logger,
	})

	return &TestFixture{
		Backend:      fake,
		Client:       client,
		SessionStore: store,
		Registry:     reg,
	}
}

// RequestWithPathParam wraps a request with chi URL params.
func RequestWithPathParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// SignalsRequest builds a datastar POST carrying signals as a JSON body.
func SignalsRequest(t *testing.T, target string, signals any) *http.Request {
	t.Helper()
	body, err := json.Marshal(signals)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Datastar-Request", "true")
	return req
}

// UploadRequest builds a multipart POST with one file in the "file" field.
func UploadRequest(t *testing.T, target, name string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// CookieJar replays the cookies a handler set on later requests, standing
// in for a browser.
type CookieJar struct {
	cookies []*http.Cookie
}

// Do serves req with h, attaching stored cookies and keeping new ones.
func (j *CookieJar) Do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	for _, c := range j.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if set := rec.Result().Cookies(); len(set) > 0 {
		j.cookies = set
	}
	return rec
}

// NewTestSessionStore creates a session store for testing.
func NewTestSessionStore() *sessions.CookieStore {
	return sessions.NewCookieStore([]byte("test-secret-key-32-bytes-long!!"))
}
