// File: internal/api/client_test.go
package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/promptpilot/internal/config"
)

func newTestClient(t *testing.T, srv *httptest.Server, cfg config.APIConfig) *Client {
	t.Helper()
	return NewClient(cfg, srv.URL+"/services/bank", zaptest.NewLogger(t), WithHTTPClient(srv.Client()))
}

func TestClient_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/services/bank/customers/12", r.URL.Path)
		assert.Equal(t, "expand=1", r.URL.RawQuery, "query strings are kept")
		assert.Equal(t, AcceptHeader, r.Header.Get("Accept"))
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = io.WriteString(w, `{"id": 42, "name": "John"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, config.APIConfig{Headers: map[string]string{"X-Test": "yes"}})
	resp, err := c.Get(context.Background(), "/customers/12?expand=1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.True(t, resp.OK())

	obj, ok := resp.Object()
	require.True(t, ok)
	assert.Equal(t, float64(42), obj["id"])
	assert.Equal(t, "John", obj["name"])
}

func TestClient_XMLIsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, "<customer><id>12212</id></customer>")
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv, config.APIConfig{}).Get(context.Background(), srv.URL+"/abs")
	require.NoError(t, err)
	text, ok := resp.Text()
	require.True(t, ok)
	assert.Equal(t, "<customer><id>12212</id></customer>", text)
}

func TestClient_PostPutDelete(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.RequestURI()+" "+string(body))
		mu.Unlock()
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": 7}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, config.APIConfig{})
	ctx := context.Background()

	_, err := c.Post(ctx, "createAccount?customerId=1&type=0", map[string]any{"a": 1})
	require.NoError(t, err)
	_, err = c.Put(ctx, "/accounts/7", map[string]any{"b": "x"})
	require.NoError(t, err)
	resp, err := c.Delete(ctx, "/accounts/7")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.Status)
	assert.Nil(t, resp.Body, "empty bodies decode to nil")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		`POST /services/bank/createAccount?customerId=1&type=0 {"a":1}`,
		`PUT /services/bank/accounts/7 {"b":"x"}`,
		"DELETE /services/bank/accounts/7 ",
	}, seen)
}

func TestClient_NonSuccessIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv, config.APIConfig{}).Get(context.Background(), "/missing")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.False(t, resp.OK())
}

func TestClient_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, "{not json")
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, config.APIConfig{}).Get(context.Background(), "/x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode")
}

func TestClient_RelativeWithoutBase(t *testing.T) {
	c := NewClient(config.APIConfig{}, "", nil)
	_, err := c.Get(context.Background(), "/accounts")
	assert.True(t, errors.Is(err, ErrNoBaseURL))
}

func TestClient_Decompression(t *testing.T) {
	const payload = `{"id": 99}`
	tests := []struct {
		encoding string
		compress func(*testing.T, []byte) []byte
	}{
		{"gzip", func(t *testing.T, b []byte) []byte {
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			_, err := zw.Write(b)
			require.NoError(t, err)
			require.NoError(t, zw.Close())
			return buf.Bytes()
		}},
		{"br", func(t *testing.T, b []byte) []byte {
			var buf bytes.Buffer
			bw := brotli.NewWriter(&buf)
			_, err := bw.Write(b)
			require.NoError(t, err)
			require.NoError(t, bw.Close())
			return buf.Bytes()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.encoding, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Contains(t, r.Header.Get("Accept-Encoding"), tt.encoding)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Content-Encoding", tt.encoding)
				_, _ = w.Write(tt.compress(t, []byte(payload)))
			}))
			defer srv.Close()

			resp, err := newTestClient(t, srv, config.APIConfig{}).Get(context.Background(), "/c")
			require.NoError(t, err)
			obj, ok := resp.Object()
			require.True(t, ok)
			assert.Equal(t, float64(99), obj["id"])
		})
	}
}

func TestClient_AdoptsBearerToken(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	var (
		mu          sync.Mutex
		authHeaders []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		authHeaders = append(authHeaders, r.Header.Get("Authorization"))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/services/bank/users/login" {
			_, _ = io.WriteString(w, `{"user": {"_id": "u1"}, "token": "`+token+`"}`)
			return
		}
		_, _ = io.WriteString(w, `{"ok": true}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, config.APIConfig{})
	_, err = c.Post(context.Background(), "/users/login", map[string]string{"email": "a@b.c"})
	require.NoError(t, err)
	assert.Equal(t, token, c.BearerToken())

	_, err = c.Get(context.Background(), "/contacts")
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"", "Bearer " + token}, authHeaders)
}

func TestClient_IgnoresNonJWTToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"token": "opaque-session-id"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, config.APIConfig{})
	_, err := c.Get(context.Background(), "/session")
	require.NoError(t, err)
	assert.Empty(t, c.BearerToken())
}

func TestClient_RateLimiterHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	defer srv.Close()

	c := newTestClient(t, srv, config.APIConfig{RateLimit: 0.001, Burst: 1})
	_, err := c.Get(context.Background(), "/a")
	require.NoError(t, err, "the first request uses the burst")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Get(ctx, "/b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}
