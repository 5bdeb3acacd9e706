package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mroshb/couple_journal/internal/middleware"
)

type shareRequest struct {
	MemoryID string `json:"memoryId"`
}

func (h *HandlerManager) ShareMemory(c *gin.Context) {
	var req shareRequest
	if !bind(c, &req) {
		return
	}

	share, err := h.Sharing.ShareMemory(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.MemoryID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, share)
}

func (h *HandlerManager) UnshareMemory(c *gin.Context) {
	err := h.Sharing.UnshareMemory(c.Request.Context(), middleware.UserID(c), c.Param("memoryId"), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HandlerManager) SharedWithMe(c *gin.Context) {
	views, err := h.Sharing.SharedWithMe(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shares": views})
}

func (h *HandlerManager) SharedByMe(c *gin.Context) {
	views, err := h.Sharing.SharedByMe(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shares": views})
}
