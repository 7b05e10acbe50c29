// Package shared содержит общие типы домена: ошибки, события, value objects.
// Пакет не зависит ни от чего, кроме стандартной библиотеки.
package shared

import (
	"errors"
	"fmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// ВИДЫ ОШИБОК
// Проверяются через errors.Is. HTTP-слой переводит вид в статус ответа.
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	ErrValidation   = errors.New("validation error")
	ErrInvalidID    = errors.New("invalid ID")
	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyValue   = errors.New("value cannot be empty")

	// ErrConflict: переход невозможен из текущего состояния (повторная сдача попытки)
	ErrConflict = errors.New("conflicting state")

	// ErrDegenerateContent: тест без баллов нельзя оценить
	ErrDegenerateContent = errors.New("degenerate content")

	// ErrStorageConflict сигнализирует о нарушении уникальности на уровне хранилища.
	// Наружу из ledger не выходит: превращается в Granted=false.
	ErrStorageConflict = errors.New("storage conflict")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Временные сбои, операцию можно повторить
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrServiceUnavailable     = errors.New("service unavailable")
	ErrTimeout                = errors.New("operation timeout")
)

// DomainError привязывает вид ошибки к месту, где она возникла.
// errors.Is и errors.As видят и вид, и исходную причину.
type DomainError struct {
	Domain  string // "progress", "quiz", "achievement"...
	Op      string // "CompleteLesson"
	Kind    error
	Message string
	Err     error // причина, может отсутствовать
}

func (e *DomainError) Error() string {
	msg := e.Domain + "." + e.Op + ": " + e.Message
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *DomainError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError то же, что NewDomainError, но с причиной.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// ══════════════════════════════════════════════════════════════════════════════
// ИЗВЕСТНЫЕ ОШИБКИ ДОМЕНА
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrLearnerNotFound = NewDomainError("learner", "Find", ErrNotFound, "learner not found")
	ErrInvalidLearner  = NewDomainError("learner", "Validate", ErrInvalidID, "invalid learner ID")

	ErrLessonNotFound  = NewDomainError("lesson", "Find", ErrNotFound, "lesson not found")
	ErrQuizNotFound    = NewDomainError("quiz", "Find", ErrNotFound, "quiz not found")
	ErrDegenerateQuiz  = NewDomainError("quiz", "Score", ErrDegenerateContent, "quiz has no scorable points")
	ErrInvalidQuestion = NewDomainError("quiz", "Validate", ErrInvalidInput, "invalid question")

	ErrAttemptNotFound         = NewDomainError("progress", "FindAttempt", ErrNotFound, "quiz attempt not found")
	ErrAttemptAlreadySubmitted = NewDomainError("progress", "SubmitQuizAttempt", ErrConflict, "quiz attempt already submitted")

	ErrAchievementNotFound = NewDomainError("achievement", "Find", ErrNotFound, "achievement not found")
	ErrAlreadyEarned       = NewDomainError("achievement", "Award", ErrStorageConflict, "achievement already earned")
)

// ══════════════════════════════════════════════════════════════════════════════
// КЛАССИФИКАЦИЯ
// ══════════════════════════════════════════════════════════════════════════════

func isAny(err error, kinds ...error) bool {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

func IsNotFound(err error) bool        { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool        { return errors.Is(err, ErrConflict) }
func IsDegenerate(err error) bool      { return errors.Is(err, ErrDegenerateContent) }
func IsStorageConflict(err error) bool { return errors.Is(err, ErrStorageConflict) }

// IsValidation: запрос некорректен, повторять бессмысленно.
func IsValidation(err error) bool {
	return isAny(err, ErrValidation, ErrInvalidID, ErrInvalidInput, ErrEmptyValue)
}

// IsRetryable: сбой временный, повтор той же операции может пройти.
func IsRetryable(err error) bool {
	return isAny(err, ErrServiceUnavailable, ErrTimeout, ErrConcurrentModification)
}
