package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nekogravitycat/reservation-backend/internal/pkg/metrics"
	"github.com/nekogravitycat/reservation-backend/internal/reservation"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newTestRouter(t *testing.T, pinger Pinger, log *zap.Logger) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	svc := reservation.NewService(reservation.NewPgxRepository(nil, 1), zap.NewNop(), metrics.NewWithRegistry(reg))
	return NewRouter(Config{
		Logger:             log,
		DB:                 pinger,
		Gatherer:           reg,
		ReservationService: svc,
	})
}

func serve(router *gin.Engine, method, path string, header http.Header) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		w := serve(newTestRouter(t, stubPinger{}, zap.NewNop()), "GET", "/healthz", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	})

	t.Run("Database Down", func(t *testing.T) {
		w := serve(newTestRouter(t, stubPinger{err: errors.New("refused")}, zap.NewNop()), "GET", "/healthz", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, stubPinger{}, zap.NewNop())

	// Rejected by validation, so no database access is needed.
	serve(router, "GET", "/v1/reservations/0", nil)

	w := serve(router, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `reservation_operations_total{operation="get",outcome="invalid"} 1`)
}

func TestRequestIDAndLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	router := newTestRouter(t, stubPinger{}, zap.New(core))

	t.Run("Generated", func(t *testing.T) {
		w := serve(router, "GET", "/healthz", nil)
		_, err := uuid.Parse(w.Header().Get(RequestIDHeader))
		assert.NoError(t, err)
	})

	t.Run("Propagated", func(t *testing.T) {
		id := uuid.NewString()
		w := serve(router, "GET", "/healthz", http.Header{RequestIDHeader: []string{id}})
		assert.Equal(t, id, w.Header().Get(RequestIDHeader))

		entries := logs.FilterField(zap.String("request_id", id)).All()
		require.Len(t, entries, 1)
		assert.Equal(t, "/healthz", entries[0].ContextMap()["path"])
	})

	t.Run("Errors Logged As Warnings", func(t *testing.T) {
		serve(router, "GET", "/v1/reservations/abc", nil)

		entries := logs.FilterLevelExact(zap.WarnLevel).All()
		require.NotEmpty(t, entries)
		assert.Contains(t, entries[len(entries)-1].ContextMap(), "errors")
	})
}
