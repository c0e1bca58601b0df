package ledger

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"campuscredits/internal/api"
	"campuscredits/internal/auth"
	"campuscredits/internal/logger"

	"github.com/gin-gonic/gin"
)

// Notifier is told about credits that arrived from another account.
type Notifier interface {
	TransferReceived(ctx context.Context, toAccountID, fromAccountID, amount int64, reason string) error
}

type Handler struct {
	service  Service
	notifier Notifier
}

func NewHandler(service Service, notifier Notifier) *Handler {
	return &Handler{
		service:  service,
		notifier: notifier,
	}
}

// GetBalance godoc
// @Summary      Credit balance
// @Tags         wallet
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  BalanceResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /wallet/balance [get]
func (h *Handler) GetBalance(c *gin.Context) {
	accountID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	balance, err := h.service.GetBalance(c.Request.Context(), accountID)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, BalanceResponse{AccountID: accountID, Balance: balance})
}

// ListTransactions godoc
// @Summary      Transaction history
// @Description  Newest first. Pass the returned next cursor back as before_id and before_time.
// @Tags         wallet
// @Security     BearerAuth
// @Produce      json
// @Param        limit        query     int     false  "Page size (max 100)"
// @Param        before_id    query     int     false  "Cursor transaction id"
// @Param        before_time  query     string  false  "Cursor timestamp, RFC3339"
// @Success      200  {object}  HistoryResponse
// @Failure      400  {object}  api.ErrorResponse
// @Router       /wallet/transactions [get]
func (h *Handler) ListTransactions(c *gin.Context) {
	accountID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	var cursor Cursor
	if raw := c.Query("before_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			api.BadRequest(c, "before_id must be a positive integer")
			return
		}
		ts, err := time.Parse(time.RFC3339Nano, c.Query("before_time"))
		if err != nil {
			api.BadRequest(c, "before_time must be an RFC3339 timestamp")
			return
		}
		cursor = Cursor{BeforeTime: ts, BeforeID: id}
	}

	txs, next, err := h.service.Page(c.Request.Context(), accountID, cursor, limit)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	if txs == nil {
		txs = []Transaction{}
	}

	c.JSON(http.StatusOK, HistoryResponse{Transactions: txs, Next: next})
}

// Transfer godoc
// @Summary      Send credits to another account
// @Tags         wallet
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      TransferRequest  true  "Transfer"
// @Success      200      {object}  TransferResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      402      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Router       /wallet/transfer [post]
func (h *Handler) Transfer(c *gin.Context) {
	accountID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.BadRequest(c, err.Error())
		return
	}

	out, in, err := h.service.Transfer(c.Request.Context(), accountID, req.ToAccountID, req.Amount, req.Reason)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	if h.notifier != nil {
		if err := h.notifier.TransferReceived(c.Request.Context(), req.ToAccountID, accountID, req.Amount, req.Reason); err != nil {
			logger.WithError(err).Warn("transfer notification not queued", "transfer_id", out.TransferID)
		}
	}

	c.JSON(http.StatusOK, TransferResponse{Out: out, In: in})
}

// Award godoc
// @Summary      Grant credits to an account
// @Description  Staff only. A repeated Idempotency-Key header returns the original transaction.
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int           true  "Account ID"
// @Param        request  body      AwardRequest  true  "Award"
// @Success      201      {object}  Transaction
// @Failure      400      {object}  api.ErrorResponse
// @Failure      403      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Router       /admin/accounts/{id}/credits [post]
func (h *Handler) Award(c *gin.Context) {
	actorID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	accountID, ok := api.ParamID(c, "id")
	if !ok {
		return
	}

	var req AwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.BadRequest(c, err.Error())
		return
	}

	post := PostRequest{
		AccountID: accountID,
		Amount:    req.Amount,
		Kind:      req.Kind,
		Reason:    req.Reason,
	}
	if key := c.GetHeader("Idempotency-Key"); key != "" {
		post.IdempotencyKey = "award:" + key
	}

	t, err := h.service.Award(c.Request.Context(), actorID, post)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, t)
}

// Verify godoc
// @Summary      Check an account balance against its transaction log
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Account ID"
// @Success      200  {object}  api.MessageResponse
// @Failure      404  {object}  api.ErrorResponse
// @Failure      500  {object}  api.ErrorResponse
// @Router       /admin/accounts/{id}/ledger/verify [get]
func (h *Handler) Verify(c *gin.Context) {
	accountID, ok := api.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Verify(c.Request.Context(), accountID); err != nil {
		api.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "ledger consistent"})
}
