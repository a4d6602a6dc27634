package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func serve(deps map[string]Pinger) int {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthz", Handler(deps))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	return w.Code
}

func TestHandlerHealthy(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	assert.Equal(t, http.StatusOK, serve(map[string]Pinger{"redis": ok}))
}

func TestHandlerUnavailable(t *testing.T) {
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })
	assert.Equal(t, http.StatusServiceUnavailable, serve(map[string]Pinger{"kafka": down}))
}
