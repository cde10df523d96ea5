package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_GetProduct(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"p1","name":"Shirt","price":200000,"salePrice":150000,"totalStock":5,
			"variants":[{"id":"red","info":"Red / M","stockQuantity":2}],"attributes":{"material":"cotton"}}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL + "/api/"})
	p, err := c.GetProduct(context.Background(), "p1", "tok")
	require.NoError(t, err)

	assert.Equal(t, "/api/products/p1", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "Shirt", p.Name)
	require.NotNil(t, p.SalePrice)
	assert.Equal(t, int64(150000), *p.SalePrice)
	v, ok := p.Variant("red")
	require.True(t, ok)
	assert.Equal(t, 2, *v.StockQuantity)
	assert.Equal(t, "cotton", p.Attributes["material"])
}

func TestClient_NoTokenNoHeader(t *testing.T) {
	var hasAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasAuth = r.Header["Authorization"]
		_, _ = w.Write([]byte(`{"id":"p1"}`))
	}))
	defer srv.Close()

	_, err := NewClient(Options{BaseURL: srv.URL}).GetProduct(context.Background(), "p1", "")
	require.NoError(t, err)
	assert.False(t, hasAuth)
}

func TestClient_NotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, FailureThreshold: 2})
	for i := 0; i < 5; i++ {
		_, err := c.GetProduct(context.Background(), "nope", "")
		assert.ErrorIs(t, err, ErrProductNotFound)
	}
	assert.Equal(t, int32(5), calls.Load(), "not found must not open the breaker")
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(Options{BaseURL: srv.URL}).GetProduct(context.Background(), "p1", "")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Status)
	assert.Equal(t, "boom", statusErr.Body)
}

func TestClient_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, FailureThreshold: 3, OpenTimeout: time.Minute})
	for i := 0; i < 3; i++ {
		_, err := c.GetProduct(context.Background(), "p1", "")
		require.Error(t, err)
	}

	_, err := c.GetProduct(context.Background(), "p1", "")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":`))
	}))
	defer srv.Close()

	_, err := NewClient(Options{BaseURL: srv.URL}).GetProduct(context.Background(), "p1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode product p1")
}

func TestClient_CallerCancelDoesNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"id":"p1","name":"Shirt","price":1}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, FailureThreshold: 2, OpenTimeout: time.Minute})

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 5; i++ {
		_, err := c.GetProduct(cancelled, "p1", "")
		require.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}

	p, err := c.GetProduct(context.Background(), "p1", "")
	require.NoError(t, err)
	assert.Equal(t, "Shirt", p.Name)
	assert.Equal(t, int32(1), hits.Load())
}
