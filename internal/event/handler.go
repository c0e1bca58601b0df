package event

import (
	"context"
	"net/http"

	"campuscredits/internal/api"
	"campuscredits/internal/auth"
	"campuscredits/internal/logger"

	"github.com/gin-gonic/gin"
)

type Notifier interface {
	AttendanceRewarded(ctx context.Context, accountID, eventID, amount int64) error
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

// ListEvents godoc
// @Summary      List events
// @Description  Every published event with the caller's registration status.
// @Tags         events
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   EventView
// @Router       /events [get]
func (h *Handler) ListEvents(c *gin.Context) {
	accountID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	views, err := h.service.ListForAccount(c.Request.Context(), accountID)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, views)
}

// GetStatus godoc
// @Summary      Registration status
// @Tags         events
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Event ID"
// @Success      200  {object}  StatusResponse
// @Router       /events/{id}/status [get]
func (h *Handler) GetStatus(c *gin.Context) {
	accountID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	eventID, ok := api.ParamID(c, "id")
	if !ok {
		return
	}

	status, err := h.service.StatusFor(c.Request.Context(), eventID, accountID)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, StatusResponse{EventID: eventID, Status: status})
}

// Register godoc
// @Summary      Register for an event
// @Tags         events
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Event ID"
// @Success      201  {object}  Registration
// @Failure      403  {object}  api.ErrorResponse
// @Failure      409  {object}  api.ErrorResponse
// @Router       /events/{id}/register [post]
func (h *Handler) Register(c *gin.Context) {
	accountID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	eventID, ok := api.ParamID(c, "id")
	if !ok {
		return
	}

	reg, err := h.service.Register(c.Request.Context(), eventID, accountID)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, reg)
}

// Cancel godoc
// @Summary      Cancel a registration
// @Tags         events
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Event ID"
// @Success      200  {object}  api.MessageResponse
// @Failure      404  {object}  api.ErrorResponse
// @Failure      409  {object}  api.ErrorResponse
// @Router       /events/{id}/cancel [post]
func (h *Handler) Cancel(c *gin.Context) {
	accountID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	eventID, ok := api.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Cancel(c.Request.Context(), eventID, accountID); err != nil {
		api.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Registration cancelled"})
}

// MarkAttended godoc
// @Summary      Record attendance and credit the reward
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int                true  "Event ID"
// @Param        request  body      AttendanceRequest  true  "Attendee"
// @Success      200      {object}  AttendanceResponse
// @Failure      403      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /admin/events/{id}/attendance [post]
func (h *Handler) MarkAttended(c *gin.Context) {
	reviewerID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	eventID, ok := api.ParamID(c, "id")
	if !ok {
		return
	}

	var req AttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.BadRequest(c, err.Error())
		return
	}

	t, err := h.service.MarkAttended(c.Request.Context(), eventID, req.AccountID, reviewerID)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	resp := AttendanceResponse{EventID: eventID, AccountID: req.AccountID}
	if t != nil {
		resp.Credited = t.Amount
		if h.notifier != nil {
			if err := h.notifier.AttendanceRewarded(c.Request.Context(), req.AccountID, eventID, t.Amount); err != nil {
				logger.WithError(err).Warn("attendance notification not queued", "event_id", eventID)
			}
		}
	}

	c.JSON(http.StatusOK, resp)
}
