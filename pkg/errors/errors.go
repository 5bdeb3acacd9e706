package errors

import (
	stderrors "errors"
	"fmt"
)

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError with the same code, so callers can
// compare against the sentinels below with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeNotAuthorized     = "NOT_AUTHORIZED"
	ErrCodeNotOwner          = "NOT_OWNER"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeTransport         = "TRANSPORT_ERROR"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)

// Pairing state conflicts
const (
	ErrCodeAlreadyPaired        = "ALREADY_PAIRED"
	ErrCodeSelfInvite           = "SELF_INVITE"
	ErrCodeUnknownRecipient     = "UNKNOWN_RECIPIENT"
	ErrCodeDuplicatePending     = "DUPLICATE_PENDING"
	ErrCodeInvitationNotFound   = "INVITATION_NOT_FOUND"
	ErrCodeInvitationNotPending = "INVITATION_NOT_PENDING"
	ErrCodeInvitationExpired    = "INVITATION_EXPIRED"
	ErrCodeNoActiveCouple       = "NO_ACTIVE_COUPLE"
	ErrCodeAlreadyShared        = "ALREADY_SHARED"
)

var (
	ErrAlreadyPaired        = New(ErrCodeAlreadyPaired, "already paired")
	ErrSelfInvite           = New(ErrCodeSelfInvite, "cannot invite yourself")
	ErrUnknownRecipient     = New(ErrCodeUnknownRecipient, "no user with that email")
	ErrDuplicatePending     = New(ErrCodeDuplicatePending, "a pending invitation already exists between these users")
	ErrInvitationNotFound   = New(ErrCodeInvitationNotFound, "invitation not found")
	ErrInvitationNotPending = New(ErrCodeInvitationNotPending, "invitation is no longer pending")
	ErrInvitationExpired    = New(ErrCodeInvitationExpired, "invitation has expired")
	ErrNoActiveCouple       = New(ErrCodeNoActiveCouple, "no active couple")
	ErrAlreadyShared        = New(ErrCodeAlreadyShared, "memory already shared")
	ErrNotAuthorized        = New(ErrCodeNotAuthorized, "not a participant")
	ErrNotOwner             = New(ErrCodeNotOwner, "not the owner")
	ErrNotFound             = New(ErrCodeNotFound, "not found")
)

// Kind groups codes into the categories callers branch on.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindConflict      Kind = "conflict"
	KindNotFound      Kind = "not_found"
	KindTransport     Kind = "transport"
	KindInternal      Kind = "internal"
)

func (e *AppError) Kind() Kind {
	switch e.Code {
	case ErrCodeValidation:
		return KindValidation
	case ErrCodeNotAuthorized, ErrCodeNotOwner:
		return KindAuthorization
	case ErrCodeAlreadyPaired, ErrCodeSelfInvite, ErrCodeUnknownRecipient, ErrCodeDuplicatePending,
		ErrCodeInvitationNotPending, ErrCodeInvitationExpired, ErrCodeNoActiveCouple, ErrCodeAlreadyShared,
		ErrCodeRateLimitExceeded:
		return KindConflict
	case ErrCodeNotFound, ErrCodeInvitationNotFound:
		return KindNotFound
	case ErrCodeTransport:
		return KindTransport
	default:
		return KindInternal
	}
}

// As extracts the AppError from err, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf classifies any error; errors that are not AppErrors are internal.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind()
	}
	return KindInternal
}

// CodeOf returns the AppError code or ErrCodeInternalError.
func CodeOf(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ErrCodeInternalError
}

const genericRefreshMessage = "Can't complete this action, please refresh and try again."

var userMessages = map[string]string{
	ErrCodeAlreadyPaired:        "You are already paired.",
	ErrCodeSelfInvite:           "You can't invite yourself.",
	ErrCodeUnknownRecipient:     "We couldn't find anyone with that email.",
	ErrCodeDuplicatePending:     "There is already a pending invitation between you two.",
	ErrCodeInvitationNotFound:   "This invitation no longer exists.",
	ErrCodeInvitationNotPending: "This invitation has already been answered.",
	ErrCodeInvitationExpired:    "This invitation has expired.",
	ErrCodeNoActiveCouple:       "You are not currently paired.",
	ErrCodeAlreadyShared:        "This memory is already shared with your partner.",
	ErrCodeNotFound:             "Not found.",
	ErrCodeRateLimitExceeded:    "Too many requests, slow down a little.",
	ErrCodeTransport:            "We couldn't reach the server, please try again.",
}

// UserMessage maps err to the text shown to an end user. Authorization
// failures only happen against a stale UI, so they degrade to a generic hint.
func UserMessage(err error) string {
	appErr, ok := As(err)
	if !ok {
		return "Something went wrong."
	}
	switch appErr.Kind() {
	case KindAuthorization:
		return genericRefreshMessage
	case KindValidation:
		return appErr.Message
	}
	if msg, ok := userMessages[appErr.Code]; ok {
		return msg
	}
	return "Something went wrong."
}
