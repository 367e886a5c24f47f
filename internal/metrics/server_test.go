package metrics_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alejandrodnm/propbet/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestHandler_Healthz(t *testing.T) {
	code, body := get(t, metrics.Handler(func(context.Context) error { return nil }), "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	code, body = get(t, metrics.Handler(func(context.Context) error { return errors.New("db down") }), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "db down")
}

func TestHandler_Metrics(t *testing.T) {
	metrics.BetsRejected.WithLabelValues("above_maximum").Inc()

	code, body := get(t, metrics.Handler(nil), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `propbet_bets_rejected_total{reason="above_maximum"}`)
}
