package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mroshb/couple_journal/internal/middleware"
)

// GetMe returns the caller's user record, including the cached partner fields.
func (h *HandlerManager) GetMe(c *gin.Context) {
	user, err := h.Users.GetUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
