package wink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Options{
		BaseURL:    srv.URL,
		AccountID:  42,
		Username:   "user",
		Password:   "pass",
		StoreID:    1,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	return client, srv
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(Options{BaseURL: "http://example.com"})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestLoginCapturesHeaderToken(t *testing.T) {
	var sawAuth, sawBody atomic.Bool
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/Web/login/doctors", r.URL.Path)
		if r.Header.Get("Authorization") != "" {
			sawAuth.Store(true)
		}

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["accountsId"] == "42" && body["thirdParty"] == true {
			sawBody.Store(true)
		}

		w.Header().Set("token", "session-token")
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, client.Login(context.Background()))
	assert.True(t, sawAuth.Load())
	assert.True(t, sawBody.Load())
	assert.Equal(t, "session-token", client.token)
}

func TestLoginFailures(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	assert.ErrorIs(t, client.Login(context.Background()), ErrLoginFailed)

	client, _ = newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK) // 200 but no token header
	}))
	assert.ErrorIs(t, client.Login(context.Background()), ErrNoToken)
}

func TestProductFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/Web/Product/12345", r.URL.Path)
		assert.Equal(t, "tok", r.Header.Get("Token"))
		json.NewEncoder(w).Encode(map[string]any{"upc": "12345", "totalInventory": 3})
	}))
	client.token = "tok"

	product, found, err := client.Product(context.Background(), "12345")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "12345", product["upc"])
}

func TestProductListResponseTakesFirst(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]any{
			map[string]any{"upc": "first"},
			map[string]any{"upc": "second"},
		})
	}))

	product, found, err := client.Product(context.Background(), "12345")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "first", product["upc"])
}

func TestProductNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	product, found, err := client.Product(context.Background(), "0000")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, product)
}

func TestProductHonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"upc": "12345"})
	}))

	product, found, err := client.Product(context.Background(), "12345")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "12345", product["upc"])
	assert.Equal(t, int32(2), calls.Load())
}

func TestProductStillRateLimitedAfterRetry(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, _, err := client.Product(context.Background(), "12345")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still rate limited")
}

func TestProductReauthenticatesOn401(t *testing.T) {
	var logins atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Web/login/doctors":
			logins.Add(1)
			w.Header().Set("token", "fresh-token")
		case "/Web/Product/12345":
			if r.Header.Get("Token") != "fresh-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"upc": "12345"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	client.token = "stale-token"

	product, found, err := client.Product(context.Background(), "12345")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "12345", product["upc"])
	assert.Equal(t, int32(1), logins.Load())
}

func TestParseRetryAfterDefaults(t *testing.T) {
	assert.Equal(t, "1m0s", parseRetryAfter("").String())
	assert.Equal(t, "1m0s", parseRetryAfter("soon").String())
	assert.Equal(t, "5s", parseRetryAfter("5").String())
}
