package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mroshb/couple_journal/internal/middleware"
	"github.com/mroshb/couple_journal/internal/models"
)

type coupleResponse struct {
	Couple  *models.Couple  `json:"couple"`
	Partner *models.Partner `json:"partner"`
}

// GetCouple returns the caller's active couple, or nulls when single.
func (h *HandlerManager) GetCouple(c *gin.Context) {
	userID := middleware.UserID(c)
	couple, err := h.Couples.ActiveCouple(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}

	resp := coupleResponse{Couple: couple}
	if couple != nil {
		if partner, ok := couple.PartnerOf(userID); ok {
			resp.Partner = &partner
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HandlerManager) GetCoupleHistory(c *gin.Context) {
	couples, err := h.Couples.History(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"couples": couples})
}

func (h *HandlerManager) UpdateSettings(c *gin.Context) {
	var patch models.SettingsPatch
	if !bind(c, &patch) {
		return
	}

	couple, err := h.Couples.UpdateSettings(c.Request.Context(), middleware.UserID(c), c.Param("id"), patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, couple)
}

func (h *HandlerManager) Disconnect(c *gin.Context) {
	if err := h.Couples.Disconnect(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
