package domain

import (
	"errors"
	"fmt"
)

// Error classes. Transport layers classify with errors.Is against these.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrUnauthorized   = errors.New("unauthorized")
)

var (
	ErrMissingRecipient     = fmt.Errorf("%w: recipient id is required", ErrInvalidRequest)
	ErrSelfConversation     = fmt.Errorf("%w: cannot create a conversation with yourself", ErrInvalidRequest)
	ErrMissingConversation  = fmt.Errorf("%w: conversation id is required", ErrInvalidRequest)
	ErrEmptyContent         = fmt.Errorf("%w: message content is required", ErrInvalidRequest)
	ErrMessageTooLarge      = fmt.Errorf("%w: message too large", ErrInvalidRequest)
	ErrTooManyAttachments   = fmt.Errorf("%w: too many attachments", ErrInvalidRequest)
	ErrInvalidAttachment    = fmt.Errorf("%w: attachment url is required", ErrInvalidRequest)
	ErrConversationNotFound = fmt.Errorf("%w: conversation not found", ErrNotFound)
	ErrUserNotFound         = fmt.Errorf("%w: recipient user not found", ErrNotFound)
	ErrPropertyNotFound     = fmt.Errorf("%w: property not found", ErrNotFound)
	ErrNotParticipant       = fmt.Errorf("%w: user is not a participant in this conversation", ErrForbidden)
	ErrInvalidToken         = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	ErrMissingToken         = fmt.Errorf("%w: missing token", ErrUnauthorized)
)
