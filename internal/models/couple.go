package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CoupleStatus is a closed set; a new pairing is always a new document.
type CoupleStatus string

const (
	CoupleStatusActive       CoupleStatus = "active"
	CoupleStatusDisconnected CoupleStatus = "disconnected"
)

func (s CoupleStatus) Valid() bool {
	return s == CoupleStatusActive || s == CoupleStatusDisconnected
}

type CoupleSettings struct {
	AutoShareNewMemories bool `gorm:"not null;default:false" json:"autoShareNewMemories"`
}

// SettingsPatch carries a partial settings update; nil fields are untouched.
type SettingsPatch struct {
	AutoShareNewMemories *bool `json:"autoShareNewMemories"`
}

func (p SettingsPatch) IsEmpty() bool {
	return p.AutoShareNewMemories == nil
}

// Apply merges the patch into s and returns the changed columns.
func (p SettingsPatch) Apply(s *CoupleSettings) map[string]interface{} {
	columns := map[string]interface{}{}
	if p.AutoShareNewMemories != nil {
		s.AutoShareNewMemories = *p.AutoShareNewMemories
		columns["settings_auto_share_new_memories"] = *p.AutoShareNewMemories
	}
	return columns
}

// Couple stores the inviter in slot 1 and the invitee in slot 2.
type Couple struct {
	ID             string         `gorm:"primaryKey;type:varchar(36)" json:"coupleId"`
	User1ID        string         `gorm:"type:varchar(36);not null;index:idx_couple_user1_status,priority:1" json:"user1Id"`
	User1Name      string         `gorm:"type:varchar(255);not null" json:"user1Name"`
	User1Avatar    string         `gorm:"type:varchar(500)" json:"user1Avatar,omitempty"`
	User2ID        string         `gorm:"type:varchar(36);not null;index:idx_couple_user2_status,priority:1" json:"user2Id"`
	User2Name      string         `gorm:"type:varchar(255);not null" json:"user2Name"`
	User2Avatar    string         `gorm:"type:varchar(500)" json:"user2Avatar,omitempty"`
	Status         CoupleStatus   `gorm:"type:varchar(20);not null;default:'active';index:idx_couple_user1_status,priority:2;index:idx_couple_user2_status,priority:2" json:"status"`
	Settings       CoupleSettings `gorm:"embedded;embeddedPrefix:settings_" json:"settings"`
	InvitationID   string         `gorm:"type:varchar(36);index" json:"invitationId"`
	CreatedAt      time.Time      `gorm:"not null" json:"createdAt"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
	DisconnectedAt *time.Time     `json:"disconnectedAt,omitempty"`
	DisconnectedBy string         `gorm:"type:varchar(36)" json:"disconnectedBy,omitempty"`
}

func (c Couple) DocumentID() string { return c.ID }

func (c *Couple) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if !c.Status.Valid() {
		return gorm.ErrInvalidData
	}
	if c.User1ID == c.User2ID {
		return gorm.ErrInvalidData
	}
	return nil
}

func (c *Couple) IsActive() bool {
	return c.Status == CoupleStatusActive
}

func (c *Couple) HasParticipant(userID string) bool {
	return userID != "" && (c.User1ID == userID || c.User2ID == userID)
}

// Slot returns 1 or 2 for a participant and 0 for anyone else.
func (c *Couple) Slot(userID string) int {
	switch userID {
	case c.User1ID:
		return 1
	case c.User2ID:
		return 2
	}
	return 0
}

// Partner describes the other participant from one user's point of view.
type Partner struct {
	ID     string `json:"partnerId"`
	Name   string `json:"partnerName"`
	Avatar string `json:"partnerAvatar,omitempty"`
}

// PartnerOf returns the participant opposite userID.
func (c *Couple) PartnerOf(userID string) (Partner, bool) {
	switch c.Slot(userID) {
	case 1:
		return Partner{ID: c.User2ID, Name: c.User2Name, Avatar: c.User2Avatar}, true
	case 2:
		return Partner{ID: c.User1ID, Name: c.User1Name, Avatar: c.User1Avatar}, true
	}
	return Partner{}, false
}
