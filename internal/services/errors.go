// Package services defines the business logic of the messaging gateway:
// conversation resolution, message ingestion and fan-out, delivery/read
// state, presence broadcasting, notifications and reactions.
//
// This file centralizes service-level error values. Each concrete error
// wraps one of a small set of kinds so that transports can branch with
// errors.Is and translate to an error event or HTTP status without knowing
// every individual error.
package services

import (
	"errors"
	"fmt"

	"github.com/tbourn/go-chat-gateway/internal/auth"
)

// Error kinds.
var (
	// ErrAuthFailure is terminal at the connection level.
	ErrAuthFailure = auth.ErrAuthFailure

	// ErrNotFound covers absent conversations, messages, users and
	// notifications.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when an authenticated principal is not allowed
	// to act on a resource, e.g. it is not a participant.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation is returned for malformed client payloads.
	ErrValidation = errors.New("validation failed")

	// ErrStoreFailure wraps a failed persistence call.
	ErrStoreFailure = errors.New("store failure")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newErr(kind error, msg string) error { return &kindError{kind: kind, msg: msg} }

// Concrete errors.
var (
	// ErrConversationNotFound indicates the conversation id does not resolve.
	ErrConversationNotFound = newErr(ErrNotFound, "conversation not found")

	// ErrMessageNotFound indicates the message id does not resolve.
	ErrMessageNotFound = newErr(ErrNotFound, "message not found")

	// ErrReplyNotFound is returned when reply_to does not name a message in
	// the same conversation.
	ErrReplyNotFound = newErr(ErrNotFound, "reply_to message not found in conversation")

	// ErrNotificationNotFound indicates the notification does not exist for
	// the caller.
	ErrNotificationNotFound = newErr(ErrNotFound, "notification not found")

	// ErrNotParticipant is returned when the caller is not a member of the
	// conversation it targets.
	ErrNotParticipant = newErr(ErrForbidden, "not a participant of this conversation")

	// ErrMissingConversationID is returned when conversation_id is blank.
	ErrMissingConversationID = newErr(ErrValidation, "conversation_id is required")

	// ErrEmptyContent is returned when a message has no content and no media.
	ErrEmptyContent = newErr(ErrValidation, "content is empty")

	// ErrContentTooLong is returned when content exceeds the configured limit.
	ErrContentTooLong = newErr(ErrValidation, "content too long")

	// ErrInvalidMessageType is returned for an unknown message_type.
	ErrInvalidMessageType = newErr(ErrValidation, "invalid message_type")

	// ErrInvalidStatus is returned for a status-change other than online or
	// offline.
	ErrInvalidStatus = newErr(ErrValidation, "status must be online or offline")

	// ErrInvalidTarget is returned when a reaction names an unsupported
	// target_type or a blank target_id.
	ErrInvalidTarget = newErr(ErrValidation, "invalid reaction target")

	// ErrInvalidReaction is returned for an unknown reaction_type.
	ErrInvalidReaction = newErr(ErrValidation, "invalid reaction_type")
)

// storeErr marks err as a persistence failure while keeping it inspectable.
func storeErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreFailure, err)
}

// ErrorCode returns a stable, client-facing code for err.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthFailure):
		return auth.Code(err)
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrValidation):
		return "validation_failed"
	case errors.Is(err, ErrStoreFailure):
		return "store_failure"
	default:
		return "internal_error"
	}
}

// PublicMessage returns the text safe to show a client. Store failures and
// unknown errors are not echoed verbatim.
func PublicMessage(err error) string {
	switch {
	case errors.Is(err, ErrStoreFailure):
		return "temporary storage failure"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden),
		errors.Is(err, ErrValidation), errors.Is(err, ErrAuthFailure):
		return err.Error()
	default:
		return "internal error"
	}
}
