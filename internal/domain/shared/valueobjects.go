// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// Идентификаторы контента и учеников приходят из внешних систем (каталог,
// identity provider), поэтому формат ограничен мягко: slug или UUID.
var idRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,127}$`)

// ValidID reports whether s can be used as an entity identifier.
func ValidID(s string) bool {
	return idRegex.MatchString(s)
}

// ═══════════════════════════════════════════════════════════════════════════
// Points Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Points represents a learner point balance.
type Points int

const (
	MinPoints Points = 0

	// DefaultPointsPerLevel is the level step when configuration does not override it.
	DefaultPointsPerLevel = 500
)

// Int returns the underlying int value.
func (p Points) Int() int {
	return int(p)
}

// Level derives the level from a balance: 1 + points/perLevel.
func (p Points) Level(perLevel int) Level {
	if perLevel <= 0 {
		perLevel = DefaultPointsPerLevel
	}
	if p <= 0 {
		return MinLevel
	}
	return Level(1 + int(p)/perLevel)
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Level represents a learner's level.
type Level int

const MinLevel Level = 1

// Int returns the underlying int value.
func (l Level) Int() int {
	return int(l)
}

// Title returns a human-readable title for the level.
func (l Level) Title() string {
	switch {
	case l < 3:
		return "Novice"
	case l < 6:
		return "Apprentice"
	case l < 10:
		return "Practitioner"
	case l < 20:
		return "Expert"
	default:
		return "Master"
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Difficulty Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Difficulty is the lesson difficulty tier.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// AllDifficulties lists the known tiers in ascending order.
var AllDifficulties = []Difficulty{DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced}

// IsValid checks if the difficulty is one of the known tiers.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// String returns the string representation.
func (d Difficulty) String() string {
	return string(d)
}

// ParseDifficulty normalizes user input; unknown values fall back to beginner.
func ParseDifficulty(s string) Difficulty {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if !d.IsValid() {
		return DifficultyBeginner
	}
	return d
}

// ═══════════════════════════════════════════════════════════════════════════
// Role Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Role is the platform role carried by the identity token.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// IsValid checks if the role is known.
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// CanViewOthers reports whether the role may read another learner's records.
func (r Role) CanViewOthers() bool {
	return r == RoleTeacher || r == RoleAdmin
}
