package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/reservation-backend/internal/reservation"
)

func TestNewContainer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()

	c := NewContainer(Config{Registry: reg, QueryBufferSize: 4})
	require.NotNil(t, c.Router)
	require.NotNil(t, c.ReservationService)

	t.Run("Routes Are Registered", func(t *testing.T) {
		req, _ := http.NewRequest("POST", "/v1/reservations", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		c.Router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "missing_payload")
	})

	t.Run("Service Validates Before Touching The Pool", func(t *testing.T) {
		_, err := c.ReservationService.Get(context.Background(), 0)
		assert.ErrorIs(t, err, reservation.ErrInvalidReservationID)
	})

	t.Run("Collectors Use The Given Registry", func(t *testing.T) {
		families, err := reg.Gather()
		require.NoError(t, err)

		var names []string
		for _, f := range families {
			names = append(names, f.GetName())
		}
		assert.Contains(t, names, "reservation_operations_total")
	})
}
