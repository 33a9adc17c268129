package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"flashdeal/dealhub/internal/handler/middleware"
)

var ErrNoUserContext = errors.New("user id not found in context")

func getUserIDFromContext(c *gin.Context) (int64, error) {
	val, exists := c.Get(middleware.ContextKeyUserID)
	if !exists {
		return 0, ErrNoUserContext
	}
	userID, ok := val.(int64)
	if !ok {
		return 0, ErrNoUserContext
	}
	return userID, nil
}
