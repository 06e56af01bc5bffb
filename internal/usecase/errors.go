package usecase

import (
	"context"
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindNotFound       ErrorKind = "not_found"
	KindInvalidState   ErrorKind = "invalid_state"
	KindInfrastructure ErrorKind = "infrastructure"
)

// AppError は呼び出し側（handler）へ返すエラー。
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewValidationError(format string, args ...any) error {
	return &AppError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(message string) error {
	return &AppError{Kind: KindNotFound, Message: message}
}

func NewInvalidStateError(message string) error {
	return &AppError{Kind: KindInvalidState, Message: message}
}

func NewInfrastructureError(message string, err error) error {
	return &AppError{Kind: KindInfrastructure, Message: message, Err: err}
}

func AsAppError(err error) (*AppError, bool) {
	var ae *AppError
	ok := errors.As(err, &ae)
	return ae, ok
}

func IsKind(err error, kind ErrorKind) bool {
	ae, ok := AsAppError(err)
	return ok && ae.Kind == kind
}

// AppErrorならそのまま、それ以外（タイムアウト含む）はinfrastructure扱い
func asInfrastructure(message string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsAppError(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewInfrastructureError(message+": timeout", err)
	}
	return NewInfrastructureError(message, err)
}
