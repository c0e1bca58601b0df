package api

import (
	"net/http"
	"strconv"

	"campuscredits/internal/apperr"
	"campuscredits/internal/logger"

	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Error string `json:"error" example:"something went wrong"`
	Kind  string `json:"kind,omitempty" example:"InsufficientFunds"`
}

type MessageResponse struct {
	Message string `json:"message" example:"ok"`
}

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

var kindStatus = map[apperr.Kind]int{
	apperr.InvalidPayload:    http.StatusBadRequest,
	apperr.InvalidAmount:     http.StatusBadRequest,
	apperr.Unauthorized:      http.StatusForbidden,
	apperr.AccountNotFound:   http.StatusNotFound,
	apperr.NotRegistered:     http.StatusNotFound,
	apperr.InvalidTransition: http.StatusConflict,
	apperr.EventFull:         http.StatusConflict,
	apperr.EventNotApproved:  http.StatusConflict,
	apperr.AlreadyRegistered: http.StatusConflict,
	apperr.InsufficientFunds: http.StatusPaymentRequired,
}

// StatusFor maps an error to its HTTP status; untyped errors are 500.
func StatusFor(err error) int {
	if kind, ok := apperr.KindOf(err); ok {
		if status, ok := kindStatus[kind]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// RespondError writes err as an ErrorResponse. Internal errors are logged
// and their details kept out of the body.
func RespondError(c *gin.Context, err error) {
	kind, ok := apperr.KindOf(err)
	if !ok {
		logger.WithError(err).Error("request failed", "method", c.Request.Method, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(StatusFor(err), ErrorResponse{Error: err.Error(), Kind: string(kind)})
}

func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Kind: string(apperr.InvalidPayload)})
}

// ParamID reads a positive integer path parameter.
func ParamID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		BadRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}
