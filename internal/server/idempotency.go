package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"campuscredits/internal/api"
	"campuscredits/internal/auth"
	"campuscredits/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyHeader  = "Idempotency-Key"
	idempotencyLockTTL = 30 * time.Second
)

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        string `json:"body"`
}

type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

func idempotencyKey(accountID int64, r *http.Request, key string) string {
	return fmt.Sprintf("idempotency:%d:%s:%s:%s", accountID, r.Method, r.URL.Path, key)
}

// IdempotencyMiddleware replays the stored response of a POST that repeats
// an Idempotency-Key already seen for the same caller and path. Server
// errors are not stored so the client can retry them.
func IdempotencyMiddleware(rdb *redis.Client, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(idempotencyHeader)
		if key == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		if len(key) > 200 {
			api.BadRequest(c, "Idempotency-Key is too long")
			c.Abort()
			return
		}

		accountID, _ := auth.GetUserID(c)
		cacheKey := idempotencyKey(accountID, c.Request, key)
		lockKey := cacheKey + ":lock"
		ctx := c.Request.Context()

		raw, err := rdb.Get(ctx, cacheKey).Result()
		switch {
		case err == nil:
			var cached cachedResponse
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				logger.Debug("idempotent replay", "key", cacheKey)
				c.Header("X-Idempotency-Hit", "true")
				c.Data(cached.Status, cached.ContentType, []byte(cached.Body))
				c.Abort()
				return
			}
			logger.Warn("discarding unreadable idempotency entry", "key", cacheKey)
		case !errors.Is(err, redis.Nil):
			// Without redis the ledger idempotency keys still guard credit moves.
			logger.WithError(err).Warn("idempotency lookup failed", "key", cacheKey)
			c.Next()
			return
		}

		acquired, err := rdb.SetNX(ctx, lockKey, "1", idempotencyLockTTL).Result()
		if err != nil {
			logger.WithError(err).Warn("idempotency lock failed", "key", cacheKey)
			c.Next()
			return
		}
		if !acquired {
			c.AbortWithStatusJSON(http.StatusConflict, api.ErrorResponse{Error: "a request with this Idempotency-Key is in progress"})
			return
		}
		// The lock release and the stored response must outlive a client disconnect.
		persistCtx := context.WithoutCancel(ctx)
		defer rdb.Del(persistCtx, lockKey)

		rec := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = rec

		c.Next()

		status := rec.Status()
		if status >= http.StatusInternalServerError {
			return
		}
		data, _ := json.Marshal(cachedResponse{
			Status:      status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.String(),
		})
		if err := rdb.Set(persistCtx, cacheKey, string(data), ttl).Err(); err != nil {
			logger.WithError(err).Warn("failed to store idempotent response", "key", cacheKey)
		}
	}
}
