package model

import (
	"errors"
	"fmt"
)

// базовые ошибки домена, слои выше проверяют их через errors.Is
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrQuotaExceeded   = errors.New("quota exceeded")
	ErrUnavailable     = errors.New("printer is currently unavailable")

	// внутренние ошибки диспетчера, наружу не уходят
	ErrOrphanedJob  = errors.New("orphaned job")
	ErrHeadMismatch = errors.New("queue head mismatch")
)

// QuotaError несёт подробности отказа по квоте
type QuotaError struct {
	Required  int
	Available int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("available pages not enough: required %d, available %d", e.Required, e.Available)
}

func (e *QuotaError) Unwrap() error {
	return ErrQuotaExceeded
}

// Error представляет ошибку домена с сообщением, которое можно показать клиенту
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func NotFoundf(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Invalidf(format string, args ...any) error {
	return &Error{Kind: ErrInvalidArgument, Msg: fmt.Sprintf(format, args...)}
}

func Unavailablef(format string, args ...any) error {
	return &Error{Kind: ErrUnavailable, Msg: fmt.Sprintf(format, args...)}
}

// PublicMessage достаёт из цепочки сообщение для клиента
// для ошибок без известного типа возвращает пустую строку
func PublicMessage(err error) string {
	var qe *QuotaError
	if errors.As(err, &qe) {
		return qe.Error()
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Msg
	}
	return ""
}
