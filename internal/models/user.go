package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Logical collection names. Physical table names get the configured prefix
// from the gorm naming strategy.
const (
	CollectionUsers             = "users"
	CollectionCoupleInvitations = "couple_invitations"
	CollectionCouples           = "couples"
	CollectionMemories          = "memories"
	CollectionSharedMemories    = "shared_memories"
)

type UserCoupleStatus string

const (
	UserCoupleStatusSingle UserCoupleStatus = "single"
	UserCoupleStatusPaired UserCoupleStatus = "paired"
)

// User is the identity provider's account plus the denormalized partner
// fields. The partner fields are a read cache; couples is the source of truth.
type User struct {
	ID           string           `gorm:"primaryKey;type:varchar(36)" json:"userId"`
	Email        string           `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	DisplayName  string           `gorm:"type:varchar(255);not null" json:"displayName"`
	AvatarURL    string           `gorm:"type:varchar(500)" json:"avatarUrl,omitempty"`
	CoupleID     *string          `gorm:"type:varchar(36);index" json:"coupleId"`
	PartnerID    *string          `gorm:"type:varchar(36)" json:"partnerId"`
	PartnerName  string           `gorm:"type:varchar(255)" json:"partnerName,omitempty"`
	PartnerEmail string           `gorm:"type:varchar(255)" json:"partnerEmail,omitempty"`
	CoupleStatus UserCoupleStatus `gorm:"type:varchar(20);not null;default:'single'" json:"coupleStatus"`
	CreatedAt    time.Time        `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time        `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (u User) DocumentID() string { return u.ID }

// CachedCoupleID returns the cached couple id or "".
func (u *User) CachedCoupleID() string {
	if u.CoupleID == nil {
		return ""
	}
	return *u.CoupleID
}

// BeforeCreate assigns an id, normalizes the email and validates.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = NormalizeEmail(u.Email)
	if u.CoupleStatus == "" {
		u.CoupleStatus = UserCoupleStatusSingle
	}
	if u.Email == "" {
		return gorm.ErrInvalidData
	}
	if u.CoupleStatus != UserCoupleStatusSingle && u.CoupleStatus != UserCoupleStatusPaired {
		return gorm.ErrInvalidData
	}
	return nil
}

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CoupleLink is the set of denormalized partner fields written on a user
// when a couple forms. A nil link clears them.
type CoupleLink struct {
	CoupleID     string
	PartnerID    string
	PartnerName  string
	PartnerEmail string
}

// Columns returns the column updates for the link.
func (l *CoupleLink) Columns() map[string]interface{} {
	if l == nil {
		return map[string]interface{}{
			"couple_id":     nil,
			"partner_id":    nil,
			"partner_name":  "",
			"partner_email": "",
			"couple_status": string(UserCoupleStatusSingle),
		}
	}
	return map[string]interface{}{
		"couple_id":     l.CoupleID,
		"partner_id":    l.PartnerID,
		"partner_name":  l.PartnerName,
		"partner_email": l.PartnerEmail,
		"couple_status": string(UserCoupleStatusPaired),
	}
}

// Matches reports whether the user's cache already reflects the link.
func (l *CoupleLink) Matches(u *User) bool {
	if l == nil {
		return u.CoupleID == nil && u.PartnerID == nil && u.CoupleStatus == UserCoupleStatusSingle
	}
	return u.CachedCoupleID() == l.CoupleID &&
		u.PartnerID != nil && *u.PartnerID == l.PartnerID &&
		u.PartnerName == l.PartnerName &&
		u.PartnerEmail == l.PartnerEmail &&
		u.CoupleStatus == UserCoupleStatusPaired
}
