package services

import "errors"

// Index service errors
var (
	ErrRunNotFound         = errors.New("index run not found")
	ErrRunExists           = errors.New("index run already exists")
	ErrTooManyObservations = errors.New("too many observations")
	ErrGroupTooLarge       = errors.New("too many groups to store")
	ErrGroupColumnRequired = errors.New("group column required")
	ErrPanelRequired       = errors.New("panel required")
)
