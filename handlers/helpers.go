package handlers

import (
	"errors"
	"net/http"

	"orchidaquiz/services"

	"github.com/gin-gonic/gin"
)

// respondError maps engine errors to an HTTP status plus a stable code
// string, so clients can tell "too late" from "already answered" and
// render the right explanation.
func respondError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	code := "bad_request"

	switch {
	case errors.Is(err, services.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, services.ErrInvalidState):
		status, code = http.StatusConflict, "invalid_state"
	case errors.Is(err, services.ErrNicknameTaken):
		status, code = http.StatusConflict, "nickname_taken"
	case errors.Is(err, services.ErrAlreadyAnswered):
		status, code = http.StatusConflict, "already_answered"
	case errors.Is(err, services.ErrTooLate):
		status, code = http.StatusConflict, "too_late"
	case errors.Is(err, services.ErrWrongQuestion):
		status, code = http.StatusConflict, "wrong_question"
	case errors.Is(err, services.ErrPinExhausted):
		status, code = http.StatusServiceUnavailable, "pin_exhausted"
	case errors.Is(err, services.ErrBadSelection):
		status, code = http.StatusUnprocessableEntity, "invalid_selection"
	}

	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

func callerIdentity(c *gin.Context) (services.Identity, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		return services.Identity{}, false
	}
	role, _ := c.Get("role")
	roleStr, _ := role.(string)
	return services.Identity{UserID: userID.(uint), Role: roleStr}, true
}
