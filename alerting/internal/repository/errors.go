package repository

import (
	"errors"
	"fmt"

	"weaponwatch/alerting/internal/models"
)

var (
	ErrDuplicateID       = errors.New("duplicate alert id")
	ErrNotFound          = errors.New("alert not found")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrInvalidAlert      = errors.New("invalid alert")
	ErrCameraNotFound    = errors.New("camera not found")
)

// TransitionError reports a rejected backwards status change.
type TransitionError struct {
	ID   string
	From models.Status
	To   models.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("alert %s: cannot move from %s to %s", e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrIllegalTransition
}
