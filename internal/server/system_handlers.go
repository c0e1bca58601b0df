package server

import (
	"context"
	"net/http"
	"time"

	"campuscredits/internal/api"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// @Summary      Health check
// @Description  Reports 503 when postgres or redis does not answer.
// @Tags         system
// @Produce      json
// @Success      200 {object} api.HealthResponse
// @Failure      503 {object} api.ErrorResponse
// @Router       /health [get]
func Health(db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{Error: "database unavailable"})
			return
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{Error: "redis unavailable"})
			return
		}

		c.JSON(http.StatusOK, api.HealthResponse{Status: "ok"})
	}
}

// QueueGauge refreshes a queue length gauge.
type QueueGauge interface {
	QueueLength(ctx context.Context) int64
}

// @Summary      Prometheus metrics
// @Description  Exposes Prometheus metrics in text format
// @Tags         system
// @Produce      text/plain
// @Success      200 {string} string
// @Router       /metrics [get]
func Metrics(queue QueueGauge) gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		if queue != nil {
			queue.QueueLength(c.Request.Context())
		}
		h.ServeHTTP(c.Writer, c.Request)
	}
}
