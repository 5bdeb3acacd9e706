package services

import (
	"context"
	"time"

	"github.com/mroshb/couple_journal/internal/models"
	"github.com/mroshb/couple_journal/internal/realtime"
	"github.com/mroshb/couple_journal/internal/repositories"
	"github.com/mroshb/couple_journal/internal/security"
	"github.com/mroshb/couple_journal/pkg/errors"
	"github.com/mroshb/couple_journal/pkg/logger"
	"github.com/mroshb/couple_journal/pkg/utils"
)

type MemoryService struct {
	store *repositories.Store
	bus   realtime.Bus
	clock utils.Clock
}

func NewMemoryService(store *repositories.Store, bus realtime.Bus, clock utils.Clock) *MemoryService {
	return &MemoryService{
		store: store,
		bus:   bus,
		clock: clock,
	}
}

type MemoryInput struct {
	Title      string    `json:"title" validate:"required,max=255"`
	Content    string    `json:"content" validate:"max=20000"`
	Mood       string    `json:"mood" validate:"max=50"`
	Location   string    `json:"location" validate:"max=255"`
	MemoryDate time.Time `json:"memoryDate"`
	Tags       []string  `json:"tags" validate:"max=20,dive,required,max=50"`
	PhotoURLs  []string  `json:"photoUrls" validate:"max=20,dive,url"`
}

func (in MemoryInput) sanitized() MemoryInput {
	out := in
	out.Title = security.SanitizeLine(in.Title)
	out.Content = security.SanitizeText(in.Content)
	out.Mood = security.SanitizeLine(in.Mood)
	out.Location = security.SanitizeLine(in.Location)
	out.Tags = make([]string, 0, len(in.Tags))
	for _, tag := range in.Tags {
		out.Tags = append(out.Tags, security.SanitizeLine(tag))
	}
	return out
}

// CreateMemory stores a private memory. When the owner's couple has
// auto-sharing on, the memory is also shared with the partner; a failure
// there is logged and the memory is still returned.
func (s *MemoryService) CreateMemory(ctx context.Context, ownerID string, input MemoryInput) (*models.Memory, error) {
	input = input.sanitized()
	if err := security.ValidateStruct(input); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	memory := &models.Memory{
		OwnerID:    ownerID,
		Title:      input.Title,
		Content:    input.Content,
		Mood:       input.Mood,
		Location:   input.Location,
		MemoryDate: input.MemoryDate,
		Tags:       input.Tags,
		PhotoURLs:  input.PhotoURLs,
	}
	if memory.MemoryDate.IsZero() {
		memory.MemoryDate = now
	}

	if err := s.store.WithContext(ctx).Memories.CreateMemory(memory); err != nil {
		return nil, err
	}
	changes := changeSet{}
	changes.add(models.CollectionMemories, memory.ID)

	var shared *models.SharedMemory
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		var err error
		shared, err = s.autoShare(tx, memory, now)
		return err
	})
	switch {
	case err != nil:
		logger.Warn("Auto-share failed", "memory_id", memory.ID, "owner_id", ownerID, "error", err)
	case shared != nil:
		changes.add(models.CollectionSharedMemories, shared.ID)
		logger.Info("Memory auto-shared", "memory_id", memory.ID, "shared_with", shared.SharedWithID)
	}

	changes.publish(ctx, s.bus)
	return memory, nil
}

func (s *MemoryService) autoShare(tx *repositories.Store, memory *models.Memory, now time.Time) (*models.SharedMemory, error) {
	active, err := tx.Couples.GetActiveCouple(memory.OwnerID)
	if err != nil || active == nil {
		return nil, err
	}

	couple, err := tx.Couples.GetCoupleByID(active.ID, true)
	if err != nil {
		return nil, err
	}
	if !couple.IsActive() || !couple.Settings.AutoShareNewMemories {
		return nil, nil
	}
	return grant(tx, couple, memory, now)
}

// GetMemory returns a memory to its owner.
func (s *MemoryService) GetMemory(ctx context.Context, ownerID, memoryID string) (*models.Memory, error) {
	memory, err := s.store.WithContext(ctx).Memories.GetMemoryByID(memoryID)
	if err != nil {
		return nil, err
	}
	if memory.OwnerID != ownerID {
		return nil, errors.ErrNotOwner
	}
	return memory, nil
}
