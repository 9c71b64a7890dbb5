package service

import (
	"errors"

	"github.com/Anthonytesla02/Level-Up/internal/repository"
)

// Common errors for service operations.
var (
	ErrUserLocked     = errors.New("user is locked until a punishment is chosen")
	ErrTaskExpired    = errors.New("task has expired")
	ErrNotOwner       = errors.New("task belongs to another user")
	ErrTaskNotFailed  = errors.New("task has not failed")
	ErrOptionMismatch = errors.New("punishment option does not belong to task")
	ErrInvalidInput   = errors.New("invalid input")
	ErrBusy           = errors.New("another request for this user is in progress")

	// ErrPunishmentResolved is returned when a second option is chosen for
	// the same task.
	ErrPunishmentResolved = repository.ErrPunishmentResolved
)
