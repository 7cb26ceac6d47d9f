package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"train-design-backend/internal/middleware"
	"train-design-backend/internal/models"
)

// currentUserID extracts the authenticated user's id from the gin context,
// writing the error response itself when the id is missing or malformed.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid user id"})
		return uuid.Nil, false
	}

	return userID, true
}
