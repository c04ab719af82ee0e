package xerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Базовые категории ошибок, проверяются через errors.Is
var (
	ErrValidation            = errors.New("validation error")
	ErrNotFound              = errors.New("not found")
	ErrConflict              = errors.New("conflict")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrPolicyViolation       = errors.New("policy violation")
)

// ValidationError некорректные входные данные
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Msg
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Msg)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError сущность не найдена
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError недопустимый переход состояния или проигрыш конкурентной записи
type ConflictError struct {
	Entity string
	ID     string
	Msg    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s %q: %s", e.Entity, e.ID, e.Msg)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// DependencyUnavailableError внешняя зависимость недоступна
type DependencyUnavailableError struct {
	Dependency string
	Err        error
}

func (e *DependencyUnavailableError) Error() string {
	return fmt.Sprintf("dependency %s unavailable: %v", e.Dependency, e.Err)
}

func (e *DependencyUnavailableError) Is(target error) bool { return target == ErrDependencyUnavailable }

func (e *DependencyUnavailableError) Unwrap() error { return e.Err }

// PolicyViolationError действие запрещено политикой (роль, лимит, самоодобрение)
type PolicyViolationError struct {
	Actor string
	Msg   string
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("policy violation by %s: %s", e.Actor, e.Msg)
}

func (e *PolicyViolationError) Is(target error) bool { return target == ErrPolicyViolation }

// Validation конструктор ValidationError
func Validation(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// NotFound конструктор NotFoundError
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// Conflict конструктор ConflictError
func Conflict(entity, id, format string, args ...any) error {
	return &ConflictError{Entity: entity, ID: id, Msg: fmt.Sprintf(format, args...)}
}

// DependencyUnavailable конструктор DependencyUnavailableError
func DependencyUnavailable(dependency string, err error) error {
	return &DependencyUnavailableError{Dependency: dependency, Err: err}
}

// PolicyViolation конструктор PolicyViolationError
func PolicyViolation(actor, format string, args ...any) error {
	return &PolicyViolationError{Actor: actor, Msg: fmt.Sprintf(format, args...)}
}

// HTTPStatus переводит ошибку в HTTP-код ответа
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrPolicyViolation):
		return http.StatusForbidden
	case errors.Is(err, ErrDependencyUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
