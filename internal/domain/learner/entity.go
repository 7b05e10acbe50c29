// Package learner содержит доменную модель ученика платформы.
// Баланс очков и серия активных дней меняются только через ledger
// и TouchActivity: прямой записи этих полей нет.
package learner

import (
	"strings"
	"time"

	"github.com/golearn/learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: LEARNER
// ══════════════════════════════════════════════════════════════════════════════

// Learner - ученик платформы.
type Learner struct {
	// ID - внешний идентификатор (sub из токена).
	ID string

	// Email - адрес ученика (может быть пустым для сервисных токенов).
	Email string

	// FullName - отображаемое имя.
	FullName string

	// Role - роль на платформе.
	Role shared.Role

	// Points - текущий баланс очков.
	Points int

	// Level - уровень, производный от Points.
	Level int

	// StreakDays - текущая серия дней с активностью.
	StreakDays int

	// LastActivityAt - время последней квалифицирующей активности (nil, если не было).
	LastActivityAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewLearnerParams - параметры для создания ученика.
type NewLearnerParams struct {
	ID       string
	Email    string
	FullName string
	Role     shared.Role
}

// NewLearner создаёт ученика с нулевым балансом и первым уровнем.
func NewLearner(params NewLearnerParams) (*Learner, error) {
	id := strings.TrimSpace(params.ID)
	if !shared.ValidID(id) {
		return nil, shared.ErrInvalidLearner
	}

	role := params.Role
	if !role.IsValid() {
		role = shared.RoleStudent
	}

	now := time.Now().UTC()
	return &Learner{
		ID:        id,
		Email:     strings.TrimSpace(params.Email),
		FullName:  strings.TrimSpace(params.FullName),
		Role:      role,
		Points:    0,
		Level:     int(shared.MinLevel),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// DisplayName возвращает имя для отображения в лидерборде.
func (l *Learner) DisplayName() string {
	if l.FullName != "" {
		return l.FullName
	}
	if at := strings.IndexByte(l.Email, '@'); at > 0 {
		return l.Email[:at]
	}
	return l.ID
}

// LevelTitle возвращает название текущего уровня.
func (l *Learner) LevelTitle() string {
	return shared.Level(l.Level).Title()
}
