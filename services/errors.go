package services

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure for callers.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindInternal     Kind = "internal"
)

// Error is the typed failure returned by every service operation.
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

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Code so wrapped variants compare equal to the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrInvalidInput        = &Error{Kind: KindInvalidInput, Code: "INVALID_INPUT", Message: "invalid input"}
	ErrInvalidAmount       = &Error{Kind: KindInvalidInput, Code: "INVALID_AMOUNT", Message: "amount must be positive"}
	ErrSelfRecognition     = &Error{Kind: KindInvalidInput, Code: "SELF_RECOGNITION", Message: "cannot recognize yourself"}
	ErrInsufficientBalance = &Error{Kind: KindConflict, Code: "INSUFFICIENT_BALANCE", Message: "insufficient balance"}
	ErrInvalidTransition   = &Error{Kind: KindConflict, Code: "INVALID_TRANSITION", Message: "invalid status transition"}
	ErrRewardUnavailable   = &Error{Kind: KindConflict, Code: "REWARD_UNAVAILABLE", Message: "reward is not available"}
	ErrRewardNotFound      = &Error{Kind: KindNotFound, Code: "REWARD_NOT_FOUND", Message: "reward not found"}
	ErrRedemptionNotFound  = &Error{Kind: KindNotFound, Code: "REDEMPTION_NOT_FOUND", Message: "redemption not found"}
	ErrRecognitionNotFound = &Error{Kind: KindNotFound, Code: "RECOGNITION_NOT_FOUND", Message: "recognition not found"}
	ErrInternal            = &Error{Kind: KindInternal, Code: "INTERNAL", Message: "internal error"}
)

func invalidInput(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidInput, Code: ErrInvalidInput.Code, Message: fmt.Sprintf(format, args...)}
}

func invalidTransition(from, to string) error {
	return &Error{
		Kind:    KindConflict,
		Code:    ErrInvalidTransition.Code,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

// internal wraps a storage or collaborator fault. Typed errors pass through unchanged.
func internal(op string, err error) error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}
	return &Error{Kind: KindInternal, Code: ErrInternal.Code, Message: op, Err: err}
}

// KindOf reports the Kind of err, treating untyped errors as internal.
func KindOf(err error) Kind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindInternal
}

// CodeOf reports the stable code of err.
func CodeOf(err error) string {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Code
	}
	return ErrInternal.Code
}
