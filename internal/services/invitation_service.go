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

type InvitationService struct {
	store   *repositories.Store
	couples *CoupleService
	bus     realtime.Bus
	clock   utils.Clock
	ttl     time.Duration
}

func NewInvitationService(store *repositories.Store, couples *CoupleService, bus realtime.Bus, clock utils.Clock, ttl time.Duration) *InvitationService {
	if ttl <= 0 {
		ttl = models.DefaultInvitationTTL
	}
	return &InvitationService{
		store:   store,
		couples: couples,
		bus:     bus,
		clock:   clock,
		ttl:     ttl,
	}
}

type SendInvitationInput struct {
	ReceiverEmail string `json:"receiverEmail" validate:"required,email,max=255"`
	Message       string `json:"message" validate:"required,max=500"`
}

func (s *InvitationService) SendInvitation(ctx context.Context, senderID, receiverEmail, message string) (*models.CoupleInvitation, error) {
	input := SendInvitationInput{
		ReceiverEmail: models.NormalizeEmail(receiverEmail),
		Message:       security.SanitizeText(message),
	}
	if err := security.ValidateStruct(input); err != nil {
		return nil, err
	}

	var changes changeSet
	var invitation *models.CoupleInvitation
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		changes = changeSet{}

		sender, err := tx.Users.GetUserByID(senderID)
		if err != nil {
			return err
		}
		if sender.Email == input.ReceiverEmail {
			return errors.ErrSelfInvite
		}

		receiver, err := tx.Users.GetUserByEmail(input.ReceiverEmail)
		if err != nil {
			if errors.CodeOf(err) == errors.ErrCodeNotFound {
				return errors.ErrUnknownRecipient
			}
			return err
		}
		if receiver.ID == sender.ID {
			return errors.ErrSelfInvite
		}

		users, err := tx.Users.LockUsers(sender.ID, receiver.ID)
		if err != nil {
			return err
		}
		sender, receiver = users[sender.ID], users[receiver.ID]

		active, err := tx.Couples.GetActiveCouple(sender.ID)
		if err != nil {
			return err
		}
		if active != nil {
			return errors.ErrAlreadyPaired
		}

		now := s.clock.Now()
		expired, err := tx.Invitations.ExpireOverdueBetween(sender.ID, receiver.ID, now)
		if err != nil {
			return err
		}
		changes.add(models.CollectionCoupleInvitations, expired...)

		existing, err := tx.Invitations.FindPendingBetween(sender.ID, receiver.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return errors.ErrDuplicatePending
		}

		invitation = &models.CoupleInvitation{
			SenderID:      sender.ID,
			SenderName:    sender.DisplayName,
			SenderEmail:   sender.Email,
			SenderAvatar:  sender.AvatarURL,
			ReceiverID:    receiver.ID,
			ReceiverEmail: receiver.Email,
			ReceiverName:  receiver.DisplayName,
			Message:       input.Message,
			Status:        models.InvitationStatusPending,
			CreatedAt:     now,
			ExpiresAt:     now.Add(s.ttl),
		}
		if err := tx.Invitations.CreateInvitation(invitation); err != nil {
			return err
		}
		changes.add(models.CollectionCoupleInvitations, invitation.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	changes.publish(ctx, s.bus)
	logger.Info("Invitation sent",
		"invitation_id", invitation.ID,
		"sender_id", invitation.SenderID,
		"receiver_id", invitation.ReceiverID,
	)
	return invitation, nil
}

// AcceptInvitation turns a pending invitation into a couple. Everything it
// writes commits together or not at all.
func (s *InvitationService) AcceptInvitation(ctx context.Context, receiverID, invitationID string) (*models.Couple, error) {
	var changes changeSet
	var couple *models.Couple
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		changes = changeSet{}

		inv, err := tx.Invitations.GetInvitationByID(invitationID, false)
		if err != nil {
			return err
		}
		if inv.ReceiverID != receiverID {
			return errors.ErrNotAuthorized
		}

		// Lock order is users, then invitations, as in SendInvitation.
		users, err := tx.Users.LockUsers(inv.SenderID, inv.ReceiverID)
		if err != nil {
			return err
		}
		inviter, invitee := users[inv.SenderID], users[inv.ReceiverID]

		inv, err = tx.Invitations.GetInvitationByID(invitationID, true)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if inv.IsExpiredAt(now) {
			return errors.ErrInvitationExpired
		}
		if inv.Status != models.InvitationStatusPending {
			return errors.ErrInvitationNotPending
		}

		for _, id := range []string{inviter.ID, invitee.ID} {
			active, err := tx.Couples.GetActiveCouple(id)
			if err != nil {
				return err
			}
			if active != nil {
				return errors.ErrAlreadyPaired
			}
		}

		couple, err = s.couples.createCouple(tx, inviter, invitee, inv.ID, now)
		if err != nil {
			return err
		}

		accepted, err := tx.Invitations.Transition(inv.ID, models.InvitationStatusPending, models.InvitationStatusAccepted, now)
		if err != nil {
			return err
		}
		if !accepted {
			return errors.ErrInvitationNotPending
		}

		cancelled, err := tx.Invitations.CancelPendingInvolving([]string{inviter.ID, invitee.ID}, inv.ID, now)
		if err != nil {
			return err
		}

		if err := tx.Users.SetCoupleLink(inviter.ID, linkFor(couple, invitee)); err != nil {
			return err
		}
		if err := tx.Users.SetCoupleLink(invitee.ID, linkFor(couple, inviter)); err != nil {
			return err
		}

		changes.add(models.CollectionCouples, couple.ID)
		changes.add(models.CollectionCoupleInvitations, inv.ID)
		changes.add(models.CollectionCoupleInvitations, cancelled...)
		changes.add(models.CollectionUsers, inviter.ID, invitee.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	changes.publish(ctx, s.bus)
	logger.Info("Invitation accepted",
		"invitation_id", invitationID,
		"couple_id", couple.ID,
		"cancelled_siblings", len(changes[models.CollectionCoupleInvitations])-1,
	)
	return couple, nil
}

// RejectInvitation declines a pending invitation. Answering an invitation
// that is already closed is a no-op. An overdue invitation counts as closed
// whether or not the sweep has flipped it yet.
func (s *InvitationService) RejectInvitation(ctx context.Context, receiverID, invitationID string) error {
	return s.respond(ctx, invitationID, func(inv *models.CoupleInvitation, now time.Time) (models.InvitationStatus, error) {
		if inv.ReceiverID != receiverID {
			return "", errors.ErrNotAuthorized
		}
		if !inv.IsOpenAt(now) {
			return "", nil
		}
		return models.InvitationStatusRejected, nil
	})
}

// CancelInvitation withdraws an invitation the caller sent. Like any other
// closed invitation, an overdue one can no longer be withdrawn.
func (s *InvitationService) CancelInvitation(ctx context.Context, senderID, invitationID string) error {
	return s.respond(ctx, invitationID, func(inv *models.CoupleInvitation, now time.Time) (models.InvitationStatus, error) {
		if inv.SenderID != senderID {
			return "", errors.ErrNotAuthorized
		}
		switch {
		case inv.Status == models.InvitationStatusCancelled:
			return "", nil
		case inv.IsOpenAt(now):
			return models.InvitationStatusCancelled, nil
		default:
			return "", errors.ErrInvitationNotPending
		}
	})
}

// respond locks the invitation and lets decide pick the new status. An empty
// status with no error leaves the invitation untouched.
func (s *InvitationService) respond(ctx context.Context, invitationID string, decide func(*models.CoupleInvitation, time.Time) (models.InvitationStatus, error)) error {
	var next models.InvitationStatus
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		inv, err := tx.Invitations.GetInvitationByID(invitationID, true)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		next, err = decide(inv, now)
		if err != nil || next == "" {
			return err
		}

		moved, err := tx.Invitations.Transition(inv.ID, models.InvitationStatusPending, next, now)
		if err != nil {
			return err
		}
		if !moved {
			return errors.ErrInvitationNotPending
		}
		return nil
	})
	if err != nil {
		return err
	}

	if next != "" {
		changes := changeSet{}
		changes.add(models.CollectionCoupleInvitations, invitationID)
		changes.publish(ctx, s.bus)
		logger.Info("Invitation closed", "invitation_id", invitationID, "status", string(next))
	}
	return nil
}

// ExpireOverdue flips every pending invitation past its expiry to expired.
func (s *InvitationService) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	var expired []string
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		var err error
		expired, err = tx.Invitations.ExpireOverdue(now)
		return err
	})
	if err != nil {
		return 0, err
	}

	if len(expired) > 0 {
		changes := changeSet{}
		changes.add(models.CollectionCoupleInvitations, expired...)
		changes.publish(ctx, s.bus)
	}
	return int64(len(expired)), nil
}

func (s *InvitationService) ReceivedPending(ctx context.Context, userID string) ([]models.InvitationView, error) {
	invitations, err := s.store.WithContext(ctx).Invitations.GetReceivedPending(userID)
	if err != nil {
		return nil, err
	}
	return s.views(userID, invitations), nil
}

func (s *InvitationService) SentPending(ctx context.Context, userID string) ([]models.InvitationView, error) {
	invitations, err := s.store.WithContext(ctx).Invitations.GetSentPending(userID)
	if err != nil {
		return nil, err
	}
	return s.views(userID, invitations), nil
}

func (s *InvitationService) views(userID string, invitations []models.CoupleInvitation) []models.InvitationView {
	now := s.clock.Now()
	views := make([]models.InvitationView, 0, len(invitations))
	for i := range invitations {
		views = append(views, invitations[i].ViewFor(userID, now))
	}
	return views
}
