package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/3run4/stampcard/admin"
	"github.com/3run4/stampcard/gateway"
	"github.com/3run4/stampcard/member"
	"github.com/3run4/stampcard/models"
	"github.com/3run4/stampcard/session"
	"github.com/3run4/stampcard/utils"
)

// respondError maps a domain error to a status and application code. data, when not nil,
// is sent along so the client can keep rendering the current view.
func respondError(ctx *gin.Context, err error, data interface{}) {
	var (
		be      *gateway.BusinessError
		status  int
		code    int
		message string
	)
	switch {
	case models.IsValidation(err):
		status, code, message = http.StatusBadRequest, 40002, err.Error()
	case errors.Is(err, gateway.ErrInvalidCredentials):
		status, code, message = http.StatusUnauthorized, 40110, "Invalid admin credentials"
	case errors.Is(err, session.ErrUnknownSession), errors.Is(err, member.ErrLoggedOut):
		status, code, message = http.StatusUnauthorized, 40106, "session expired, please sign in again"
	case errors.Is(err, gateway.ErrNotFound):
		status, code, message = http.StatusNotFound, 40401, "member not found"
	case errors.Is(err, admin.ErrUnknownMember):
		status, code, message = http.StatusNotFound, 40402, err.Error()
	case errors.Is(err, models.ErrBusy):
		status, code, message = http.StatusConflict, 40901, err.Error()
	case errors.Is(err, member.ErrInvalidTransition):
		status, code, message = http.StatusConflict, 40902, err.Error()
	case errors.Is(err, admin.ErrDeleteNotConfirmed):
		status, code, message = http.StatusConflict, 40903, err.Error()
	case errors.Is(err, admin.ErrNoPendingEdit):
		status, code, message = http.StatusConflict, 40904, err.Error()
	case errors.As(err, &be):
		status, code, message = http.StatusUnprocessableEntity, 42201, be.Message
	case gateway.IsTransport(err):
		status, code, message = http.StatusBadGateway, 50201, member.ConnectionMessage
	default:
		utils.Logger.Error("unhandled error", zap.Error(err), zap.String("path", ctx.FullPath()))
		status, code, message = http.StatusInternalServerError, 50000, "internal error"
	}
	utils.ErrorWithData(ctx, status, code, message, data)
}

func badPayload(ctx *gin.Context) {
	utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
}

// userMessage is the text shown for a failure that does not fail the whole request.
func userMessage(err error) string {
	if msg, ok := gateway.BusinessMessage(err); ok {
		return msg
	}
	if gateway.IsTransport(err) {
		return member.ConnectionMessage
	}
	return err.Error()
}
