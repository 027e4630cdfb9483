package repository

import "errors"

var (
	ErrNotFound          = errors.New("aggregate not found")
	ErrAlreadyExists     = errors.New("aggregate already exists")
	ErrNotRegistered     = errors.New("aggregate not registered")
	ErrAlreadyRegistered = errors.New("aggregate already registered")
	ErrMissingPrimaryKey = errors.New("aggregate model has no primary key")
	ErrInvalidCursor     = errors.New("invalid cursor")
	ErrNilAggregate      = errors.New("aggregate is nil")
)
