package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	transferKey = "idempotency:7:POST:/wallet/transfer:abc"
	ttl         = 24 * time.Hour
)

func newIdempotentRouter(rdb *redis.Client, status int, calls *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("user_id", int64(7)); c.Next() })
	r.Use(IdempotencyMiddleware(rdb, ttl))
	r.POST("/wallet/transfer", func(c *gin.Context) {
		*calls++
		c.JSON(status, gin.H{"id": 1})
	})
	r.GET("/wallet/balance", func(c *gin.Context) {
		*calls++
		c.JSON(http.StatusOK, gin.H{"balance": 5})
	})
	return r
}

func post(r *gin.Engine, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/wallet/transfer", nil)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func cached(t *testing.T, status int, body string) string {
	t.Helper()
	data, err := json.Marshal(cachedResponse{
		Status:      status,
		ContentType: "application/json; charset=utf-8",
		Body:        body,
	})
	require.NoError(t, err)
	return string(data)
}

func TestIdempotency_StoresFirstResponse(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet(transferKey).RedisNil()
	mock.ExpectSetNX(transferKey+":lock", "1", idempotencyLockTTL).SetVal(true)
	mock.ExpectSet(transferKey, cached(t, http.StatusCreated, `{"id":1}`), ttl).SetVal("OK")
	mock.ExpectDel(transferKey + ":lock").SetVal(1)

	calls := 0
	w := post(newIdempotentRouter(rdb, http.StatusCreated, &calls), "abc")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":1}`, w.Body.String())
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet(transferKey).SetVal(cached(t, http.StatusCreated, `{"id":1}`))

	calls := 0
	w := post(newIdempotentRouter(rdb, http.StatusCreated, &calls), "abc")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":1}`, w.Body.String())
	assert.Equal(t, "true", w.Header().Get("X-Idempotency-Hit"))
	assert.Zero(t, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_InProgress(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet(transferKey).RedisNil()
	mock.ExpectSetNX(transferKey+":lock", "1", idempotencyLockTTL).SetVal(false)

	calls := 0
	w := post(newIdempotentRouter(rdb, http.StatusCreated, &calls), "abc")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Zero(t, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_ServerErrorsNotStored(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet(transferKey).RedisNil()
	mock.ExpectSetNX(transferKey+":lock", "1", idempotencyLockTTL).SetVal(true)
	mock.ExpectDel(transferKey + ":lock").SetVal(1)

	calls := 0
	w := post(newIdempotentRouter(rdb, http.StatusInternalServerError, &calls), "abc")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_RedisDownPassesThrough(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet(transferKey).SetErr(errors.New("connection refused"))

	calls := 0
	w := post(newIdempotentRouter(rdb, http.StatusCreated, &calls), "abc")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_SkipsWithoutKeyOrOnGet(t *testing.T) {
	rdb, mock := redismock.NewClientMock()

	calls := 0
	r := newIdempotentRouter(rdb, http.StatusCreated, &calls)

	w := post(r, "")
	assert.Equal(t, http.StatusCreated, w.Code)

	req := httptest.NewRequest("GET", "/wallet/balance", nil)
	req.Header.Set("Idempotency-Key", "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 2, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_ClientGoneStillStoresAndUnlocks(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet(transferKey).RedisNil()
	mock.ExpectSetNX(transferKey+":lock", "1", idempotencyLockTTL).SetVal(true)
	mock.ExpectSet(transferKey, cached(t, http.StatusCreated, `{"id":1}`), ttl).SetVal("OK")
	mock.ExpectDel(transferKey + ":lock").SetVal(1)

	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("user_id", int64(7)); c.Next() })
	r.Use(IdempotencyMiddleware(rdb, ttl))
	r.POST("/wallet/transfer", func(c *gin.Context) {
		cancel()
		c.JSON(http.StatusCreated, gin.H{"id": 1})
	})

	req := httptest.NewRequest("POST", "/wallet/transfer", nil).WithContext(ctx)
	req.Header.Set("Idempotency-Key", "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Error(t, ctx.Err())
	assert.NoError(t, mock.ExpectationsWereMet())
}
