package apperrors

import (
	"errors"
	"fmt"
)

// Code определяет тип ошибки, по которому вызывающая сторона принимает решение
type Code string

const (
	CodeUnknown            Code = "UNKNOWN"
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeSelfTrade          Code = "SELF_TRADE"
	CodeListingUnavailable Code = "LISTING_UNAVAILABLE"
	CodeNotFound           Code = "NOT_FOUND"
	CodeInsufficientFunds  Code = "INSUFFICIENT_FUNDS"
	CodeTxConflict         Code = "TX_CONFLICT"
	CodeInvalidState       Code = "INVALID_STATE"
	CodePermissionDenied   Code = "PERMISSION_DENIED"
	CodeInternal           Code = "INTERNAL"
)

// AppError - структурированная ошибка ядра
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is позволяет сравнивать ошибки по коду через errors.Is
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// Конструкторы
func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) error {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func Unauthenticated(msg string) error {
	return New(CodeUnauthenticated, msg)
}

func InvalidArg(msg string) error {
	return New(CodeInvalidArgument, msg)
}

func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

func InvalidState(msg string) error {
	return New(CodeInvalidState, msg)
}

func Forbidden(msg string) error {
	return New(CodePermissionDenied, msg)
}

func Internal(msg string, cause error) error {
	return Wrap(CodeInternal, msg, cause)
}

// CodeOf возвращает код ошибки; для ошибок вне таксономии - CodeInternal
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// Is проверяет, что err принадлежит классу code
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
