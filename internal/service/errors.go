package service

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide how to surface or retry it.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindNotFound            Kind = "not_found"
	KindForbidden           Kind = "forbidden"
	KindStateConflict       Kind = "state_conflict"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindExternal            Kind = "external_failure"
	KindDataIntegrity       Kind = "data_integrity"
	KindInternal            Kind = "internal"
)

// Error is the structured error returned by every service operation.
// Two Errors match under errors.Is when their codes are equal.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	c := *e
	c.Err = cause
	return &c
}

// WithMessage returns a copy of e with a more specific message.
func (e *Error) WithMessage(msg string) *Error {
	c := *e
	c.Message = msg
	return &c
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrValidation    = newError(KindValidation, "VALIDATION_ERROR", "invalid request")
	ErrInvalidAmount = newError(KindValidation, "INVALID_AMOUNT", "amount must be positive")
	ErrInvalidPin    = newError(KindForbidden, "INVALID_PIN", "invalid transaction PIN")
	ErrForbidden     = newError(KindForbidden, "FORBIDDEN", "not allowed")

	ErrUserNotFound    = newError(KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrGroupNotFound   = newError(KindNotFound, "GROUP_NOT_FOUND", "ajo group not found")
	ErrDisputeNotFound = newError(KindNotFound, "DISPUTE_NOT_FOUND", "dispute not found")

	ErrGroupUnavailable             = newError(KindStateConflict, "GROUP_UNAVAILABLE", "group is not accepting members")
	ErrAlreadyMember                = newError(KindStateConflict, "ALREADY_MEMBER", "already a member of this group")
	ErrGroupFull                    = newError(KindStateConflict, "GROUP_FULL", "group is full")
	ErrGroupNotActive               = newError(KindStateConflict, "GROUP_NOT_ACTIVE", "group is not active")
	ErrNotAMember                   = newError(KindForbidden, "NOT_A_MEMBER", "not a member of this group")
	ErrAlreadyContributed           = newError(KindStateConflict, "ALREADY_CONTRIBUTED", "already contributed this cycle")
	ErrCannotLeaveAfterContribution = newError(KindStateConflict, "CANNOT_LEAVE_AFTER_CONTRIBUTION", "cannot leave after contributing this cycle")
	ErrPayoutInProgress             = newError(KindStateConflict, "PAYOUT_IN_PROGRESS", "a payout for this group is already running")
	ErrDisputeClosed                = newError(KindStateConflict, "DISPUTE_CLOSED", "dispute is already closed")
	ErrGroupAlreadyActive           = newError(KindStateConflict, "GROUP_ALREADY_ACTIVE", "group is already active")

	ErrInsufficientBalance = newError(KindInsufficientBalance, "INSUFFICIENT_BALANCE", "insufficient balance")

	ErrPaymentProcessingFailed = newError(KindExternal, "PAYMENT_PROCESSING_FAILED", "payment processing failed")
	ErrPayoutFailed            = newError(KindExternal, "PAYOUT_FAILED", "payout failed")
	ErrPenaltyChargeFailed     = newError(KindExternal, "PENALTY_CHARGE_FAILED", "penalty charge failed")

	ErrNoRecipientForSlot  = newError(KindDataIntegrity, "NO_RECIPIENT_FOR_SLOT", "no member holds the current slot")
	ErrInvalidPayoutAmount = newError(KindDataIntegrity, "INVALID_PAYOUT_AMOUNT", "payout amount is not positive")

	ErrInternal = newError(KindInternal, "INTERNAL_ERROR", "internal error")
)

// KindOf returns the classification of err; unknown errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// internal wraps an unexpected infrastructure error, passing structured errors through.
func internal(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return ErrInternal.Wrap(err)
}
