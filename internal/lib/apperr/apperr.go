// Package apperr задаёт закрытый набор видов ошибок приложения.
//
// Слои ниже HTTP возвращают *Error с видом и сообщением для клиента,
// граница HTTP сопоставляет вид с кодом ответа.
package apperr

import (
	"errors"
	"fmt"
)

// Kind вид ошибки.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindUnauthenticated
	KindForbidden
	KindConflict
	KindTransient
	KindPermanentAbort
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	case KindPermanentAbort:
		return "permanent_abort"
	default:
		return "internal"
	}
}

// Error ошибка приложения с видом, операцией и сообщением для клиента.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New создаёт ошибку вида kind.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Message: msg}
}

// Wrap оборачивает err в ошибку вида kind.
func Wrap(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: msg, Err: err}
}

func Validation(op, msg string) *Error      { return New(KindValidation, op, msg) }
func NotFound(op, msg string) *Error        { return New(KindNotFound, op, msg) }
func Unauthenticated(op, msg string) *Error { return New(KindUnauthenticated, op, msg) }
func Forbidden(op, msg string) *Error       { return New(KindForbidden, op, msg) }
func Conflict(op, msg string) *Error        { return New(KindConflict, op, msg) }
func PermanentAbort(op, msg string) *Error  { return New(KindPermanentAbort, op, msg) }

// Transient оборачивает сбой инфраструктуры, который имеет смысл повторить.
func Transient(op string, err error) *Error {
	return Wrap(KindTransient, op, "temporarily unavailable", err)
}

// KindOf возвращает вид первой *Error в цепочке, иначе KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is сообщает, есть ли в цепочке err ошибка вида kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf возвращает сообщение для клиента. Для внутренних ошибок текст скрывается.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal && e.Message != "" {
		return e.Message
	}
	return "internal error"
}
