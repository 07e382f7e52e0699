package httpclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/connecthub/internal/httpclient"
)

func newClient(t *testing.T, srv *httptest.Server) *httpclient.Client {
	t.Helper()
	c, err := httpclient.New(httpclient.Config{
		BaseURL:         srv.URL,
		Timeout:         5 * time.Second,
		RetryMaxElapsed: 3 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestGetJSON_DecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/requests/pending", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"requests":[{"id":"r1"}]}`))
	}))
	defer srv.Close()

	var out struct {
		Requests []struct {
			ID string `json:"id"`
		} `json:"requests"`
	}
	err := newClient(t, srv).GetJSON(context.Background(), "/v1/requests/pending", &out)
	require.NoError(t, err)
	require.Len(t, out.Requests, 1)
	assert.Equal(t, "r1", out.Requests[0].ID)
}

func TestPostJSON_SendsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"req-1","status":"pending"}`))
	}))
	defer srv.Close()

	var out struct {
		ID string `json:"id"`
	}
	err := newClient(t, srv).PostJSON(context.Background(), "/v1/requests", map[string]string{"to": "bob"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "req-1", out.ID)
}

// TestOnUnauthorizedHook verifies the 401 interception point fires without
// altering the returned error.
func TestOnUnauthorizedHook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"session expired"}`))
	}))
	defer srv.Close()

	c := newClient(t, srv)
	var hooked *httpclient.APIError
	c.OnUnauthorized = func(e *httpclient.APIError) { hooked = e }

	err := c.GetJSON(context.Background(), "/v1/conversations", nil)

	var apiErr *httpclient.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.JSONEq(t, `{"error":"session expired"}`, string(apiErr.Body))
	assert.Same(t, apiErr, hooked, "hook must see the same error the caller gets")
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"pending request already exists"}`))
	}))
	defer srv.Close()

	err := newClient(t, srv).PostJSON(context.Background(), "/v1/requests", map[string]string{"to": "bob"}, nil)

	var apiErr *httpclient.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.EqualValues(t, 1, calls.Load())
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	err := newClient(t, srv).GetJSON(context.Background(), "/healthz", &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

// TestSessionCookiePersists verifies credentials set by the server ride along
// on subsequent requests.
func TestSessionCookiePersists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "s3cret", Path: "/"})
			w.Write([]byte(`{}`))
		default:
			ck, err := r.Cookie("session")
			if err != nil || ck.Value != "s3cret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	c := newClient(t, srv)
	ctx := context.Background()

	require.NoError(t, c.PostJSON(ctx, "/login", nil, nil))
	assert.NoError(t, c.GetJSON(ctx, "/v1/conversations", nil))
}
