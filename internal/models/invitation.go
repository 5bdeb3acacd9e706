package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InvitationStatus string

const (
	InvitationStatusPending   InvitationStatus = "pending"
	InvitationStatusAccepted  InvitationStatus = "accepted"
	InvitationStatusRejected  InvitationStatus = "rejected"
	InvitationStatusCancelled InvitationStatus = "cancelled"
	InvitationStatusExpired   InvitationStatus = "expired"
)

const (
	MaxInvitationMessageLength = 500
	DefaultInvitationTTL       = 7 * 24 * time.Hour
)

func (s InvitationStatus) Valid() bool {
	switch s {
	case InvitationStatusPending, InvitationStatusAccepted, InvitationStatusRejected,
		InvitationStatusCancelled, InvitationStatusExpired:
		return true
	}
	return false
}

// IsTerminal is true for every status an invitation cannot leave.
func (s InvitationStatus) IsTerminal() bool {
	return s.Valid() && s != InvitationStatusPending
}

type CoupleInvitation struct {
	ID            string           `gorm:"primaryKey;type:varchar(36)" json:"invitationId"`
	SenderID      string           `gorm:"type:varchar(36);not null;index:idx_invitation_sender_status,priority:1" json:"senderId"`
	SenderName    string           `gorm:"type:varchar(255);not null" json:"senderName"`
	SenderEmail   string           `gorm:"type:varchar(255);not null" json:"senderEmail"`
	SenderAvatar  string           `gorm:"type:varchar(500)" json:"senderAvatar,omitempty"`
	ReceiverID    string           `gorm:"type:varchar(36);not null;index:idx_invitation_receiver_status,priority:1" json:"receiverId"`
	ReceiverEmail string           `gorm:"type:varchar(255);not null" json:"receiverEmail"`
	ReceiverName  string           `gorm:"type:varchar(255)" json:"receiverName,omitempty"`
	Message       string           `gorm:"type:varchar(500);not null" json:"message"`
	Status        InvitationStatus `gorm:"type:varchar(20);not null;default:'pending';index:idx_invitation_sender_status,priority:2;index:idx_invitation_receiver_status,priority:2" json:"status"`
	CreatedAt     time.Time        `gorm:"not null;index" json:"createdAt"`
	ExpiresAt     time.Time        `gorm:"not null;index" json:"expiresAt"`
	RespondedAt   *time.Time       `json:"respondedAt,omitempty"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (i CoupleInvitation) DocumentID() string { return i.ID }

func (i *CoupleInvitation) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if !i.Status.Valid() {
		return gorm.ErrInvalidData
	}
	if len([]rune(i.Message)) > MaxInvitationMessageLength {
		return gorm.ErrInvalidData
	}
	return nil
}

// IsExpiredAt reports whether a pending invitation is past its expiry at now.
// An invitation the sweep already flipped is expired regardless of now.
func (i *CoupleInvitation) IsExpiredAt(now time.Time) bool {
	if i.Status == InvitationStatusExpired {
		return true
	}
	return i.Status == InvitationStatusPending && now.After(i.ExpiresAt)
}

// IsOpenAt reports whether the invitation can still be answered at now.
func (i *CoupleInvitation) IsOpenAt(now time.Time) bool {
	return i.Status == InvitationStatusPending && !i.IsExpiredAt(now)
}

// Involves reports whether userID is the sender or the receiver.
func (i *CoupleInvitation) Involves(userID string) bool {
	return i.SenderID == userID || i.ReceiverID == userID
}

// InvitationView is an invitation as one participant sees it at a given time.
type InvitationView struct {
	CoupleInvitation
	Expired    bool `json:"expired"`
	CanRespond bool `json:"canRespond"`
	CanCancel  bool `json:"canCancel"`
}

// ViewFor evaluates expiry against now rather than the stored status, so an
// overdue invitation reads as expired before the sweep flips it.
func (i *CoupleInvitation) ViewFor(userID string, now time.Time) InvitationView {
	open := i.IsOpenAt(now)
	return InvitationView{
		CoupleInvitation: *i,
		Expired:          i.IsExpiredAt(now),
		CanRespond:       open && i.ReceiverID == userID,
		CanCancel:        open && i.SenderID == userID,
	}
}
