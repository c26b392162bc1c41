package service

import "errors"

var (
	// ErrLinkGone marks a link past its expiry: present in the store until
	// cleanup reaps it, but never served by the redirect path.
	ErrLinkGone = errors.New("link expired")

	// ErrAliasTaken is returned when a requested custom alias collides with
	// an existing short code or alias.
	ErrAliasTaken = errors.New("custom alias already exists")

	// ErrForbidden is returned when the caller does not own the link it is
	// trying to mutate.
	ErrForbidden = errors.New("caller does not own this link")
)
