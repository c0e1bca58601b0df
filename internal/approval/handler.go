package approval

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"campuscredits/internal/api"
	"campuscredits/internal/auth"
	"campuscredits/internal/logger"

	"github.com/gin-gonic/gin"
)

type Notifier interface {
	ReviewDecided(ctx context.Context, submitterID, entityID int64, kind, status, note string) error
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

func respond(c *gin.Context, err error) {
	if errors.Is(err, ErrEntityNotFound) {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Entity not found"})
		return
	}
	api.RespondError(c, err)
}

// Submit godoc
// @Summary      Submit an entity for review
// @Description  Creates a pending event, shop request or volunteer application.
// @Tags         entities
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      SubmitRequest  true  "Kind and payload"
// @Success      201      {object}  Entity
// @Failure      400      {object}  api.ErrorResponse
// @Router       /entities [post]
func (h *Handler) Submit(c *gin.Context) {
	h.create(c, h.service.Submit)
}

// SaveDraft godoc
// @Summary      Save a draft entity
// @Tags         entities
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      SubmitRequest  true  "Kind and payload"
// @Success      201      {object}  Entity
// @Failure      400      {object}  api.ErrorResponse
// @Router       /entities/drafts [post]
func (h *Handler) SaveDraft(c *gin.Context) {
	h.create(c, h.service.SaveDraft)
}

func (h *Handler) create(c *gin.Context, fn func(context.Context, int64, Kind, []byte) (*Entity, error)) {
	submitterID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.BadRequest(c, err.Error())
		return
	}

	e, err := fn(c.Request.Context(), submitterID, req.Kind, req.Payload)
	if err != nil {
		respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, e)
}

// SubmitDraft godoc
// @Summary      Submit a saved draft
// @Tags         entities
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Entity ID"
// @Success      200  {object}  Entity
// @Failure      404  {object}  api.ErrorResponse
// @Failure      409  {object}  api.ErrorResponse
// @Router       /entities/{id}/submit [post]
func (h *Handler) SubmitDraft(c *gin.Context) {
	submitterID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	id, ok := api.ParamID(c, "id")
	if !ok {
		return
	}

	e, err := h.service.SubmitDraft(c.Request.Context(), id, submitterID)
	if err != nil {
		respond(c, err)
		return
	}

	c.JSON(http.StatusOK, e)
}

// GetEntity godoc
// @Summary      Get an entity
// @Tags         entities
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Entity ID"
// @Success      200  {object}  Entity
// @Failure      403  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /entities/{id} [get]
func (h *Handler) GetEntity(c *gin.Context) {
	viewerID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	id, ok := api.ParamID(c, "id")
	if !ok {
		return
	}

	e, err := h.service.Get(c.Request.Context(), viewerID, id)
	if err != nil {
		respond(c, err)
		return
	}

	c.JSON(http.StatusOK, e)
}

// ListMine godoc
// @Summary      List my submissions
// @Tags         entities
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Status filter"
// @Param        limit   query     int     false  "Page size"
// @Param        offset  query     int     false  "Offset"
// @Success      200     {array}   Entity
// @Router       /entities/mine [get]
func (h *Handler) ListMine(c *gin.Context) {
	viewerID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	f, ok := parseFilter(c)
	if !ok {
		return
	}
	f.SubmitterID = viewerID

	entities, err := h.service.List(c.Request.Context(), viewerID, f)
	if err != nil {
		respond(c, err)
		return
	}

	c.JSON(http.StatusOK, entities)
}

// ListAll godoc
// @Summary      List entities for review
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        kind          query     string  false  "Kind filter"
// @Param        status        query     string  false  "Status filter"
// @Param        submitter_id  query     int     false  "Submitter filter"
// @Param        limit         query     int     false  "Page size"
// @Param        offset        query     int     false  "Offset"
// @Success      200           {array}   Entity
// @Failure      403           {object}  api.ErrorResponse
// @Router       /admin/entities [get]
func (h *Handler) ListAll(c *gin.Context) {
	viewerID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	f, ok := parseFilter(c)
	if !ok {
		return
	}
	if s := c.Query("submitter_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			api.BadRequest(c, "Invalid submitter_id")
			return
		}
		f.SubmitterID = id
	}

	entities, err := h.service.List(c.Request.Context(), viewerID, f)
	if err != nil {
		respond(c, err)
		return
	}

	c.JSON(http.StatusOK, entities)
}

func parseFilter(c *gin.Context) (Filter, bool) {
	f := Filter{
		Kind:   Kind(c.Query("kind")),
		Status: Status(c.Query("status")),
	}
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			api.BadRequest(c, "Invalid limit")
			return f, false
		}
		f.Limit = n
	}
	if s := c.Query("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			api.BadRequest(c, "Invalid offset")
			return f, false
		}
		f.Offset = n
	}
	return f, true
}

// Review godoc
// @Summary      Approve or reject a pending entity
// @Description  Approving a shop request or volunteer application debits its cost; approving an event opens it for registration.
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int            true  "Entity ID"
// @Param        request  body      ReviewRequest  true  "Decision"
// @Success      200      {object}  Entity
// @Failure      402      {object}  api.ErrorResponse
// @Failure      403      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /admin/entities/{id}/review [post]
func (h *Handler) Review(c *gin.Context) {
	reviewerID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	id, ok := api.ParamID(c, "id")
	if !ok {
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.BadRequest(c, err.Error())
		return
	}

	e, err := h.service.Review(c.Request.Context(), id, reviewerID, req.Decision, req.Note)
	if err != nil {
		respond(c, err)
		return
	}

	if h.notifier != nil {
		note := ""
		if e.ReviewNote != nil {
			note = *e.ReviewNote
		}
		if err := h.notifier.ReviewDecided(c.Request.Context(), e.SubmitterID, e.ID, string(e.Kind), string(e.Status), note); err != nil {
			logger.WithError(err).Warn("review notification not queued", "entity_id", e.ID)
		}
	}

	c.JSON(http.StatusOK, e)
}
