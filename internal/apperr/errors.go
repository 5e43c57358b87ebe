// Package apperr defines the error taxonomy shared by the validation layer,
// the engines and the HTTP surface. Every business failure carries a stable
// Kind that callers can match with errors.Is or errors.As.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a stable, machine-distinguishable error category
type Kind string

const (
	KindInvalidDateRange             Kind = "InvalidDateRange"
	KindDuplicateKey                 Kind = "DuplicateKey"
	KindInvalidValue                 Kind = "InvalidValue"
	KindImmutableFieldViolation      Kind = "ImmutableFieldViolation"
	KindInvalidStatusTransition      Kind = "InvalidStatusTransition"
	KindOutOfPeriod                  Kind = "OutOfPeriod"
	KindPercentageBudgetExceeded     Kind = "PercentageBudgetExceeded"
	KindUnknownDependency            Kind = "UnknownDependency"
	KindCircularDependency           Kind = "CircularDependency"
	KindConflictingAmendment         Kind = "ConflictingAmendment"
	KindImmutableAfterImplementation Kind = "ImmutableAfterImplementation"
	KindImmutablePaidRecord          Kind = "ImmutablePaidRecord"
	KindReferentialIntegrity         Kind = "ReferentialIntegrityViolation"
	KindUnauthenticated              Kind = "Unauthenticated"
	KindUnauthorized                 Kind = "Unauthorized"
	KindNotFound                     Kind = "NotFound"
	KindInvalidInput                 Kind = "InvalidInput"
	KindConcurrentModification       Kind = "ConcurrentModification"
	KindUpstreamFailure              Kind = "UpstreamFailure"
	KindInternal                     Kind = "InternalError"
)

// Error is a business error with a kind and a human-readable message
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is matches any *Error of the same kind, so sentinels work with errors.Is
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an error of the given kind
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is checks
var (
	ErrInvalidDateRange             = &Error{Kind: KindInvalidDateRange, Message: "start date must be before end date"}
	ErrDuplicateKey                 = &Error{Kind: KindDuplicateKey, Message: "record already exists"}
	ErrInvalidValue                 = &Error{Kind: KindInvalidValue, Message: "value must be greater than zero"}
	ErrImmutableFieldViolation      = &Error{Kind: KindImmutableFieldViolation, Message: "field cannot be changed"}
	ErrInvalidStatusTransition      = &Error{Kind: KindInvalidStatusTransition, Message: "invalid status transition"}
	ErrOutOfPeriod                  = &Error{Kind: KindOutOfPeriod, Message: "date is outside the contract period"}
	ErrPercentageBudgetExceeded     = &Error{Kind: KindPercentageBudgetExceeded, Message: "milestone percentages exceed 100%"}
	ErrUnknownDependency            = &Error{Kind: KindUnknownDependency, Message: "milestone dependency does not exist"}
	ErrCircularDependency           = &Error{Kind: KindCircularDependency, Message: "circular milestone dependency"}
	ErrConflictingAmendment         = &Error{Kind: KindConflictingAmendment, Message: "amendment conflicts with prior amendments"}
	ErrImmutableAfterImplementation = &Error{Kind: KindImmutableAfterImplementation, Message: "amendment has been implemented and cannot change"}
	ErrImmutablePaidRecord          = &Error{Kind: KindImmutablePaidRecord, Message: "billing schedule has been paid and cannot change"}
	ErrReferentialIntegrity         = &Error{Kind: KindReferentialIntegrity, Message: "record is still referenced"}
	ErrUnauthenticated              = &Error{Kind: KindUnauthenticated, Message: "authentication required"}
	ErrUnauthorized                 = &Error{Kind: KindUnauthorized, Message: "insufficient permissions"}
	ErrNotFound                     = &Error{Kind: KindNotFound, Message: "record not found"}
	ErrInvalidInput                 = &Error{Kind: KindInvalidInput, Message: "invalid input"}
	ErrConcurrentModification       = &Error{Kind: KindConcurrentModification, Message: "record was modified concurrently"}
)

// KindOf extracts the kind of err, or KindInternal for unknown errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps a kind to the response status code
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidDateRange, KindInvalidValue, KindImmutableFieldViolation, KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindUnauthorized:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindDuplicateKey, KindReferentialIntegrity, KindConcurrentModification,
		KindImmutableAfterImplementation, KindImmutablePaidRecord, KindConflictingAmendment:
		return http.StatusConflict
	case KindOutOfPeriod, KindPercentageBudgetExceeded, KindUnknownDependency,
		KindCircularDependency, KindInvalidStatusTransition:
		return http.StatusUnprocessableEntity
	case KindUpstreamFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
