package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/pulse/internal/metrics"
)

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := New(":0", fakePinger{}, zap.NewNop(), false)

	rec := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	ready := New(":0", fakePinger{}, zap.NewNop(), false)
	assert.Equal(t, http.StatusOK, get(t, ready, "/readyz").Code)

	down := New(":0", fakePinger{err: errors.New("database is locked")}, zap.NewNop(), false)
	rec := get(t, down, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "database is locked")
}

func TestMetrics(t *testing.T) {
	metrics.InstancesCreated.WithLabelValues("blocker_reported").Inc()
	s := New(":0", fakePinger{}, zap.NewNop(), false)

	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "pulse_escalation_instances_created_total"),
		"expected pulse collectors in the exposition")
}
