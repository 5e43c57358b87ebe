package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
)

// Common service errors
var (
	ErrInvalidPassword = errors.New("invalid email or password")
	ErrInactiveUser    = errors.New("user account is not active")
)

// notFound turns a missing row into a NotFound business error and wraps
// everything else as an infrastructure failure.
func notFound(err error, entity, key string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.New(apperr.KindNotFound, "%s %s not found", entity, key)
	}
	return fmt.Errorf("failed to load %s %s: %w", entity, key, err)
}

// duplicate turns a unique-index violation that slipped past the existence
// checks (a concurrent insert) into a DuplicateKey business error.
func duplicate(err error, key, value string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.New(apperr.KindDuplicateKey, "%s %q already exists", key, value)
	}
	return err
}

// passThrough keeps business errors intact and wraps infrastructure errors
func passThrough(err error, op string) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// publicMessage is the text of err safe to show to API callers
func publicMessage(err error) string {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return "internal error"
}
