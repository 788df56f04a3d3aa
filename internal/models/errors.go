package models

import "errors"

var (
	// ErrInvalidMessageID indicates a message id with neither side set.
	ErrInvalidMessageID = errors.New("message id is required")

	// ErrInvalidRole indicates a role outside user/assistant.
	ErrInvalidRole = errors.New("role must be user or assistant")

	// ErrUnknownProvider indicates an unrecognized provider name.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrUnknownSyncMode indicates an unrecognized sync mode name.
	ErrUnknownSyncMode = errors.New("unknown sync mode")
)
