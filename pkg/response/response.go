package response

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"kmbp.app/ratingbot/pkg/apperror"
	"kmbp.app/ratingbot/pkg/validator"
)

// GetUserID retrieves the authenticated chat user ID from the context
func GetUserID(c *gin.Context) (int64, error) {
	raw, exists := c.Get("user_id")
	if !exists {
		return 0, apperror.ErrUnauthorized
	}

	s, ok := raw.(string)
	if !ok {
		return 0, apperror.ErrUnauthorized
	}

	userID, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, apperror.ErrUnauthorized
	}

	return userID, nil
}

// ResponseError standardized error response
func ResponseError(c *gin.Context, err error) {
	code := apperror.MapErrorToStatus(err)

	if code == http.StatusInternalServerError {
		log.Printf("[Internal Error]: %v", err)
		c.JSON(code, gin.H{"error": "internal server error"})
		return
	}

	if msg, ok := apperror.UserMessage(err); ok {
		c.JSON(code, gin.H{"error": msg})
		return
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

// ResponseBindError reports a request binding failure as a 400 with readable field messages.
func ResponseBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
}
