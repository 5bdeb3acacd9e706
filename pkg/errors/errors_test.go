package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestAppError_Is(t *testing.T) {
	err := New(ErrCodeAlreadyPaired, "sender already has an active couple")
	wrapped := fmt.Errorf("send invitation: %w", err)

	if !stderrors.Is(wrapped, ErrAlreadyPaired) {
		t.Errorf("errors.Is(%v, ErrAlreadyPaired) = false, want true", wrapped)
	}
	if stderrors.Is(wrapped, ErrNoActiveCouple) {
		t.Errorf("errors.Is(%v, ErrNoActiveCouple) = true, want false", wrapped)
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(cause, ErrCodeTransport, "store unreachable")

	if !stderrors.Is(err, cause) {
		t.Error("Wrap() lost the underlying cause")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "Validation", err: New(ErrCodeValidation, "message is required"), want: KindValidation},
		{name: "Not authorized", err: ErrNotAuthorized, want: KindAuthorization},
		{name: "Not owner", err: ErrNotOwner, want: KindAuthorization},
		{name: "Already paired", err: ErrAlreadyPaired, want: KindConflict},
		{name: "Expired", err: ErrInvitationExpired, want: KindConflict},
		{name: "Invitation not found", err: ErrInvitationNotFound, want: KindNotFound},
		{name: "Transport", err: Wrap(stderrors.New("aborted"), ErrCodeTransport, "tx aborted"), want: KindTransport},
		{name: "Plain error", err: stderrors.New("boom"), want: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "Expired", err: ErrInvitationExpired, want: "This invitation has expired."},
		{name: "Already paired", err: fmt.Errorf("accept: %w", ErrAlreadyPaired), want: "You are already paired."},
		{name: "Authorization degrades", err: ErrNotAuthorized, want: genericRefreshMessage},
		{name: "Owner degrades", err: ErrNotOwner, want: genericRefreshMessage},
		{name: "Validation passes message", err: New(ErrCodeValidation, "message is too long"), want: "message is too long"},
		{name: "Unknown", err: stderrors.New("boom"), want: "Something went wrong."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
