package core

import (
	"errors"
	"fmt"
)

// Kind is the stable, machine readable identity of an expected failure.
type Kind string

const (
	KindMonthNotFound    Kind = "MONTH_NOT_FOUND"
	KindMonthExists      Kind = "MONTH_EXISTS"
	KindEntryNotFound    Kind = "ENTRY_NOT_FOUND"
	KindDeletionBlocked  Kind = "DELETION_BLOCKED"
	KindTemplateNotFound Kind = "TEMPLATE_NOT_FOUND"
	KindUserNotFound     Kind = "USER_NOT_FOUND"
	KindUserExists       Kind = "USER_EXISTS"
	KindWriteConflict    Kind = "WRITE_CONFLICT"
	KindInvalidInput     Kind = "INVALID_INPUT"
)

// Error is a typed, expected failure. Two errors match under errors.Is
// when their kinds are equal, whatever the message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Errorf builds an Error of the given kind.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the kind carried by err, or "" for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

var (
	ErrMonthNotFound    = &Error{Kind: KindMonthNotFound}
	ErrMonthExists      = &Error{Kind: KindMonthExists}
	ErrEntryNotFound    = &Error{Kind: KindEntryNotFound}
	ErrDeletionBlocked  = &Error{Kind: KindDeletionBlocked}
	ErrTemplateNotFound = &Error{Kind: KindTemplateNotFound}
	ErrUserNotFound     = &Error{Kind: KindUserNotFound}
	ErrUserExists       = &Error{Kind: KindUserExists}
	ErrWriteConflict    = &Error{Kind: KindWriteConflict}

	ErrInvalidAmount = &Error{Kind: KindInvalidInput, Message: "invalid amount"}
	ErrInvalidSide   = &Error{Kind: KindInvalidInput, Message: "side must be income or expense"}
	ErrInvalidTag    = &Error{Kind: KindInvalidInput, Message: "tag must be need, want or neutral"}
	ErrInvalidMonth  = &Error{Kind: KindInvalidInput, Message: "month index must be between 0 and 11"}
	ErrEmptyCategory = &Error{Kind: KindInvalidInput, Message: "category name cannot be empty"}
	ErrMissingUser   = &Error{Kind: KindInvalidInput, Message: "userId is required"}
)
