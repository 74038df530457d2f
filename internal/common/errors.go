package common

import "errors"

// Every admission, lookup and mutation returns one of these; nothing
// else crosses the API boundary. A rejected operation leaves the book
// untouched.
var (
	ErrAdmission       = errors.New("admission rejected")
	ErrBooksFull       = errors.New("book directory full")
	ErrUnknownOrder    = errors.New("unknown order")
	ErrSessionMismatch = errors.New("session mismatch")
	ErrNotCancelable   = errors.New("order not cancelable")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidPrice    = errors.New("invalid price")
)
