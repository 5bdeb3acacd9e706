package handlers

import (
	"github.com/mroshb/couple_journal/internal/config"
	"github.com/mroshb/couple_journal/internal/middleware"
	"github.com/mroshb/couple_journal/internal/realtime"
	"github.com/mroshb/couple_journal/internal/services"
	"github.com/mroshb/couple_journal/pkg/utils"
)

type HandlerManager struct {
	Config      *config.Config
	Users       *services.UserService
	Couples     *services.CoupleService
	Invitations *services.InvitationService
	Sharing     *services.SharingService
	Memories    *services.MemoryService
	Watcher     *realtime.Watcher
	Clock       utils.Clock
	RateLimiter *middleware.RateLimiter
}

func NewHandlerManager(
	cfg *config.Config,
	users *services.UserService,
	couples *services.CoupleService,
	invitations *services.InvitationService,
	sharing *services.SharingService,
	memories *services.MemoryService,
	watcher *realtime.Watcher,
	clock utils.Clock,
	rateLimiter *middleware.RateLimiter,
) *HandlerManager {
	return &HandlerManager{
		Config:      cfg,
		Users:       users,
		Couples:     couples,
		Invitations: invitations,
		Sharing:     sharing,
		Memories:    memories,
		Watcher:     watcher,
		Clock:       clock,
		RateLimiter: rateLimiter,
	}
}
