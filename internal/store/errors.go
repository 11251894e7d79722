package store

import "errors"

var (
	ErrConflict = errors.New("slot already booked")
	ErrNotFound = errors.New("not found")
)
