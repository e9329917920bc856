package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind классифицирует отказ удалённого хранилища
type Kind int

const (
	// KindTransient сетевой сбой, таймаут, 401/408/429/5xx: операцию можно повторить
	KindTransient Kind = iota + 1
	// KindRejected сервер отклонил операцию окончательно
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRejected:
		return "rejected"
	}
	return "unknown"
}

// Sentinels for errors.Is classification of *Error
var (
	ErrTransient = errors.New("transient remote failure")
	ErrRejected  = errors.New("remote rejected the operation")
)

// Error is returned by every Client call that did not succeed.
type Error struct {
	Err        error
	Message    string
	Kind       Kind
	StatusCode int // 0 для транспортных ошибок
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: status %d: %s", e.Kind, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d", e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches ErrTransient and ErrRejected by kind
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransient:
		return e.Kind == KindTransient
	case ErrRejected:
		return e.Kind == KindRejected
	}
	return false
}

// IsTransient reports whether err is a retryable remote failure
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsRejected reports whether err is a permanent remote refusal
func IsRejected(err error) bool {
	return errors.Is(err, ErrRejected)
}

// classifyStatus возвращает вид отказа по HTTP статусу
func classifyStatus(code int) Kind {
	switch {
	// 401: сессия не прошла проверку, после повторного login мутация уйдёт
	case code == http.StatusUnauthorized:
		return KindTransient
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return KindTransient
	case code >= 500:
		return KindTransient
	}
	return KindRejected
}
