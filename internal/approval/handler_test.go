package approval

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"campuscredits/internal/ledger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type decision struct {
	submitter, entity int64
	status, note      string
}

type recordingNotifier struct {
	decisions []decision
}

func (n *recordingNotifier) ReviewDecided(_ context.Context, submitterID, entityID int64, _, status, note string) error {
	n.decisions = append(n.decisions, decision{submitterID, entityID, status, note})
	return nil
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newEntityRouter(h *Handler, accountID int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("user_id", accountID); c.Next() })
	r.POST("/entities", h.Submit)
	r.POST("/entities/drafts", h.SaveDraft)
	r.GET("/entities/mine", h.ListMine)
	r.GET("/entities/:id", h.GetEntity)
	r.POST("/entities/:id/submit", h.SubmitDraft)
	r.GET("/admin/entities", h.ListAll)
	r.POST("/admin/entities/:id/review", h.Review)
	return r
}

func TestHandler_SubmitAndReview(t *testing.T) {
	poster := new(MockPoster)
	poster.On("Post", mock.Anything, mock.Anything).Return(&ledger.Transaction{ID: 1, Amount: -150}, nil)
	svc, _ := newTestService(poster, new(MockPublisher))
	notifier := &recordingNotifier{}
	h := NewHandler(svc, notifier)

	w := serve(newEntityRouter(h, student), "POST", "/entities", `{"kind":"shop_request","payload":`+shopJSON+`}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "pending", created["status"])
	assert.Equal(t, "Hoodie", created["payload"].(map[string]interface{})["item_name"])

	w = serve(newEntityRouter(h, student), "POST", "/admin/entities/1/review", `{"decision":"approve"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(newEntityRouter(h, reviewer), "POST", "/admin/entities/1/review", `{"decision":"approve","note":"ok"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, notifier.decisions, 1)
	assert.Equal(t, decision{student, 1, "approved", "ok"}, notifier.decisions[0])

	w = serve(newEntityRouter(h, reviewer), "POST", "/admin/entities/1/review", `{"decision":"reject"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "InvalidTransition")

	w = serve(newEntityRouter(h, reviewer), "POST", "/admin/entities/1/review", `{"decision":"later"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_SubmitRejectsBadPayload(t *testing.T) {
	svc, _ := newTestService(new(MockPoster), new(MockPublisher))
	h := NewHandler(svc, nil)

	w := serve(newEntityRouter(h, student), "POST", "/entities", `{"kind":"shop_request","payload":{"item_name":"Hoodie","quantity":1,"cost":5,"size":"M"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "InvalidPayload")

	w = serve(newEntityRouter(h, student), "POST", "/entities", `{"payload":{}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_NotFoundAndVisibility(t *testing.T) {
	svc, _ := newTestService(new(MockPoster), new(MockPublisher))
	h := NewHandler(svc, nil)

	w := serve(newEntityRouter(h, student), "GET", "/entities/42", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(newEntityRouter(h, reviewer), "GET", "/entities/42", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(newEntityRouter(h, student), "POST", "/entities/drafts", `{"kind":"shop_request","payload":`+shopJSON+`}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = serve(newEntityRouter(h, other), "GET", "/entities/1", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(newEntityRouter(h, other), "POST", "/entities/1/submit", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(newEntityRouter(h, student), "POST", "/entities/1/submit", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(newEntityRouter(h, student), "GET", "/entities/mine", "")
	require.Equal(t, http.StatusOK, w.Code)
	var mine []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	assert.Len(t, mine, 1)

	w = serve(newEntityRouter(h, other), "GET", "/entities/mine", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = serve(newEntityRouter(h, student), "GET", "/admin/entities", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(newEntityRouter(h, reviewer), "GET", "/admin/entities?status=pending&submitter_id=7", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	assert.Len(t, mine, 1)

	w = serve(newEntityRouter(h, reviewer), "GET", "/admin/entities?offset=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
