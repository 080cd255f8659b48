package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/magazine-cms/internal/service"
	"github.com/rs/zerolog"
)

const userIDHeader = "X-User-ID"

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrPersistenceConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrConfigurationMissing), errors.Is(err, service.ErrCredentialsMissing):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, service.ErrExternalService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error body. Internal and upstream failures are
// logged and only a short message is returned.
func respondError(c *gin.Context, log zerolog.Logger, err error, msg string) {
	status := statusFor(err)
	c.JSON(status, gin.H{"error": errorMessage(c, log, err, status, msg)})
}

// errorMessage picks the client facing text for err
func errorMessage(c *gin.Context, log zerolog.Logger, err error, status int, msg string) string {
	switch status {
	case http.StatusInternalServerError:
		log.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
		return msg
	case http.StatusBadGateway:
		log.Warn().Err(err).Str("path", c.FullPath()).Msg(msg)
		return msg + ": " + service.ErrExternalService.Error()
	default:
		return err.Error()
	}
}

func userID(c *gin.Context) string {
	return c.GetHeader(userIDHeader)
}

// paging reads limit and offset query parameters
func paging(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}
