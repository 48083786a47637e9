package utils

import (
	"net/http"

	"ShareDrop/internal/apperr"

	"github.com/gin-gonic/gin"
)

// Success writes a success JSON response.
func Success(c *gin.Context, data gin.H) {
	body := gin.H{"success": true}
	for k, v := range data {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// statusFor is the single place mapping error kinds to HTTP statuses.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindSecurity:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// genericMessage hides operational detail outside debug mode.
func genericMessage(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return "not found"
	case apperr.KindSecurity:
		return "forbidden"
	default:
		return "an error occured"
	}
}

// Fail writes an error JSON response, mapping the error kind to a status.
// With debug enabled the raw error is surfaced instead of the generic text.
func Fail(c *gin.Context, err error, debug bool) {
	message := genericMessage(err)
	if debug {
		message = err.Error()
	}
	c.JSON(statusFor(err), gin.H{"success": false, "message": message})
}
