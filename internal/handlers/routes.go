package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mroshb/couple_journal/internal/middleware"
	"github.com/mroshb/couple_journal/pkg/errors"
)

// Router builds the HTTP API. Every route requires a valid token; the
// mutating ones are also rate limited per user.
func (h *HandlerManager) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	api.Use(middleware.JWTAuth(h.Config.JWTSecret, h.Config.JWTIssuer, h.Users))

	limited := api.Group("")
	limited.Use(h.RateLimiter.Limit())

	api.GET("/me", h.GetMe)

	limited.POST("/invitations", h.SendInvitation)
	limited.POST("/invitations/:id/accept", h.AcceptInvitation)
	limited.POST("/invitations/:id/reject", h.RejectInvitation)
	limited.POST("/invitations/:id/cancel", h.CancelInvitation)
	api.GET("/invitations/received", h.ListReceived)
	api.GET("/invitations/sent", h.ListSent)

	api.GET("/couple", h.GetCouple)
	api.GET("/couple/history", h.GetCoupleHistory)
	limited.PATCH("/couples/:id/settings", h.UpdateSettings)
	limited.POST("/couples/:id/disconnect", h.Disconnect)

	limited.POST("/memories", h.CreateMemory)
	api.GET("/memories/:id", h.GetMemory)

	limited.POST("/couples/:id/shares", h.ShareMemory)
	limited.DELETE("/couples/:id/shares/:memoryId", h.UnshareMemory)
	api.GET("/shares/with-me", h.SharedWithMe)
	api.GET("/shares/by-me", h.SharedByMe)

	api.GET("/ws", h.Stream)

	return r
}

// bind decodes the JSON body into dst and aborts with 400 on failure.
func bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, errors.New(errors.ErrCodeValidation, "invalid request body"))
		return false
	}
	return true
}

func fail(c *gin.Context, err error) {
	middleware.AbortWithError(c, middleware.StatusFor(err), err)
}
