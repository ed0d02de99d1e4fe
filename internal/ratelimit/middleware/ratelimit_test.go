package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventreg/internal/ratelimit/models"
	"eventreg/pkg/testutil"
)

type stubLimiter struct {
	result *models.Result
	err    error
	gotIP  string
	gotCls models.EndpointClass
	calls  int
}

func (s *stubLimiter) CheckIP(_ context.Context, ip string, class models.EndpointClass) (*models.Result, error) {
	s.calls++
	s.gotIP = ip
	s.gotCls = class
	return s.result, s.err
}

func serve(t *testing.T, m *Middleware, class models.EndpointClass) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	reached := false
	h := m.RateLimit(class)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	}))
	req := testutil.WithClientIP(testutil.NewJSONRequest(t, http.MethodPost, "/forms", nil), "198.51.100.7")
	return testutil.DoRequest(h, req), reached
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRateLimitAllowed(t *testing.T) {
	reset := time.Date(2025, 11, 20, 10, 1, 0, 0, time.UTC)
	limiter := &stubLimiter{result: &models.Result{Allowed: true, Limit: 5, Remaining: 4, ResetAt: reset}}

	rec, reached := serve(t, New(limiter, quietLogger()), models.ClassSubmit)

	assert.True(t, reached)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "198.51.100.7", limiter.gotIP)
	assert.Equal(t, models.ClassSubmit, limiter.gotCls)
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1763632860", rec.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimitExceeded(t *testing.T) {
	limiter := &stubLimiter{result: &models.Result{Allowed: false, Limit: 5, RetryAfter: 42}}

	rec, reached := serve(t, New(limiter, quietLogger()), models.ClassSubmit)

	assert.False(t, reached)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("Retry-After"))

	var body models.ExceededResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rate_limit_exceeded", body.Error)
	assert.Equal(t, 42, body.RetryAfter)
	assert.NotEmpty(t, body.Message)
}

func TestRateLimitFailsOpen(t *testing.T) {
	limiter := &stubLimiter{err: errors.New("redis down")}

	rec, reached := serve(t, New(limiter, quietLogger()), models.ClassOpen)

	assert.True(t, reached)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestRateLimitDisabled(t *testing.T) {
	limiter := &stubLimiter{result: &models.Result{Allowed: false}}

	_, reached := serve(t, New(limiter, quietLogger(), WithDisabled(true)), models.ClassOpen)

	assert.True(t, reached)
	assert.Zero(t, limiter.calls)
}
