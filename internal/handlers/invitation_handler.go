package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mroshb/couple_journal/internal/middleware"
)

type sendInvitationRequest struct {
	ReceiverEmail string `json:"receiverEmail"`
	Message       string `json:"message"`
}

func (h *HandlerManager) SendInvitation(c *gin.Context) {
	var req sendInvitationRequest
	if !bind(c, &req) {
		return
	}

	inv, err := h.Invitations.SendInvitation(c.Request.Context(), middleware.UserID(c), req.ReceiverEmail, req.Message)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

func (h *HandlerManager) AcceptInvitation(c *gin.Context) {
	couple, err := h.Invitations.AcceptInvitation(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, couple)
}

func (h *HandlerManager) RejectInvitation(c *gin.Context) {
	if err := h.Invitations.RejectInvitation(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HandlerManager) CancelInvitation(c *gin.Context) {
	if err := h.Invitations.CancelInvitation(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HandlerManager) ListReceived(c *gin.Context) {
	views, err := h.Invitations.ReceivedPending(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitations": views})
}

func (h *HandlerManager) ListSent(c *gin.Context) {
	views, err := h.Invitations.SentPending(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitations": views})
}
