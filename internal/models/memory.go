package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Memory is a journal entry private to its owner.
type Memory struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"memoryId"`
	OwnerID    string    `gorm:"type:varchar(36);not null;index" json:"ownerId"`
	Title      string    `gorm:"type:varchar(255);not null" json:"title"`
	Content    string    `gorm:"type:text" json:"content"`
	Mood       string    `gorm:"type:varchar(50)" json:"mood,omitempty"`
	Location   string    `gorm:"type:varchar(255)" json:"location,omitempty"`
	MemoryDate time.Time `gorm:"index" json:"memoryDate"`
	Tags       []string  `gorm:"serializer:json;type:text" json:"tags,omitempty"`
	PhotoURLs  []string  `gorm:"serializer:json;type:text" json:"photoUrls,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (m Memory) DocumentID() string { return m.ID }

func (m *Memory) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// Snapshot copies the fields a partner may see.
func (m *Memory) Snapshot() MemoryData {
	return MemoryData{
		Title:      m.Title,
		Content:    m.Content,
		Mood:       m.Mood,
		Location:   m.Location,
		MemoryDate: m.MemoryDate,
		Tags:       append([]string(nil), m.Tags...),
		PhotoURLs:  append([]string(nil), m.PhotoURLs...),
	}
}

// MemoryData is the denormalized copy stored on a share.
type MemoryData struct {
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Mood       string    `json:"mood,omitempty"`
	Location   string    `json:"location,omitempty"`
	MemoryDate time.Time `json:"memoryDate"`
	Tags       []string  `json:"tags,omitempty"`
	PhotoURLs  []string  `json:"photoUrls,omitempty"`
}

// SharedMemory grants SharedWithID read access to a snapshot of MemoryID.
// Only OwnerID may create or delete it.
type SharedMemory struct {
	ID           string     `gorm:"primaryKey;type:varchar(36)" json:"sharedId"`
	MemoryID     string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_shared_memory_pair,priority:1" json:"memoryId"`
	OwnerID      string     `gorm:"type:varchar(36);not null;index" json:"ownerId"`
	SharedWithID string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_shared_memory_pair,priority:2;index" json:"sharedWithId"`
	SharedBy     string     `gorm:"type:varchar(36);not null" json:"sharedBy"`
	CoupleID     string     `gorm:"type:varchar(36);not null;index" json:"coupleId"`
	CanView      bool       `gorm:"not null;default:true" json:"canView"`
	SharedAt     time.Time  `gorm:"not null" json:"sharedAt"`
	MemoryData   MemoryData `gorm:"serializer:json;type:text" json:"memoryData"`
}

func (s SharedMemory) DocumentID() string { return s.ID }

func (s *SharedMemory) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CanView = true
	return nil
}

// SharedMemoryView is a grant as its reader sees it. Orphaned is set once
// the couple the grant was made under has ended.
type SharedMemoryView struct {
	SharedMemory
	Orphaned bool `json:"orphaned"`
}
