package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mroshb/couple_journal/internal/middleware"
	"github.com/mroshb/couple_journal/internal/services"
)

func (h *HandlerManager) CreateMemory(c *gin.Context) {
	var input services.MemoryInput
	if !bind(c, &input) {
		return
	}

	memory, err := h.Memories.CreateMemory(c.Request.Context(), middleware.UserID(c), input)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, memory)
}

func (h *HandlerManager) GetMemory(c *gin.Context) {
	memory, err := h.Memories.GetMemory(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, memory)
}
