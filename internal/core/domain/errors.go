package domain

import "errors"

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrRecipientNotInCall = errors.New("recipient not found in call")
	ErrConnectionNotFound = errors.New("connection not found")
	ErrSendBufferFull     = errors.New("send buffer full")
	ErrConnectionClosed   = errors.New("connection closed")
	ErrIdentityMismatch   = errors.New("user id does not match authenticated user")
	ErrMessageRejected    = errors.New("message references an unknown group or user")
)
