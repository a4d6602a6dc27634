package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoRetriesUnavailableGet(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"code":0}`)
	}))
	defer srv.Close()

	c := New(srv.URL+"/", time.Second)
	resp, err := c.Do(context.Background(), http.MethodGet, "/api/v1/judge/status/s1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"code":0}`, string(resp.Body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestDoSendsPostOnce(t *testing.T) {
	var calls atomic.Int32
	var gotKey, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		gotKey = r.Header.Get("Idempotency-Key")
		gotType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	resp, err := c.Do(context.Background(), http.MethodPost, "/api/v1/submissions",
		map[string]string{"Idempotency-Key": "k1", "X-Empty": ""}, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "k1", gotKey)
	assert.Equal(t, "application/json", gotType)
}

func TestDoReportsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, 100*time.Millisecond)
	c.getRetries = 0
	_, err := c.Do(context.Background(), http.MethodGet, "/x", nil, nil)
	assert.Error(t, err)
}
