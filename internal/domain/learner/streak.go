package learner

import (
	"time"

	"github.com/golearn/learning-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK
// ══════════════════════════════════════════════════════════════════════════════

// Streak представляет серию активных дней (календарные дни UTC).
type Streak struct {
	// Days - текущая длина серии.
	Days int

	// LastActiveAt - момент последней активности (нулевой, если не было).
	LastActiveAt time.Time
}

// StreakChange описывает результат применения активности к серии.
type StreakChange struct {
	OldDays int
	NewDays int

	// Changed - счётчик изменился.
	Changed bool

	// Reset - серия прервана и началась заново.
	Reset bool
}

// RecordActivity применяет активность в момент at и возвращает новую серию.
//
// Правило:
//   - первая активность или пропуск дня: серия = 1
//   - тот же день: без изменений
//   - следующий день: +1
func (s Streak) RecordActivity(at time.Time) (Streak, StreakChange) {
	change := StreakChange{OldDays: s.Days}
	next := Streak{Days: s.Days, LastActiveAt: at.UTC()}

	if s.LastActiveAt.IsZero() || s.Days <= 0 {
		next.Days = 1
		change.NewDays = 1
		change.Changed = s.Days != 1
		return next, change
	}

	switch diff := timeutil.DaysBetween(s.LastActiveAt, at); {
	case diff <= 0:
		// Тот же день (или часы назад) - ничего не меняем.
		// Последняя активность не откатывается назад во времени.
		if diff < 0 {
			next.LastActiveAt = s.LastActiveAt
		}
	case diff == 1:
		// Следующий день - продолжаем серию
		next.Days = s.Days + 1
		change.Changed = true
	default:
		// Пропущены дни - сбрасываем серию
		next.Days = 1
		change.Changed = s.Days != 1
		change.Reset = true
	}

	change.NewDays = next.Days
	return next, change
}

// IsBroken проверяет, прервана ли серия на момент now (пропущен вчерашний день).
func (s Streak) IsBroken(now time.Time) bool {
	if s.LastActiveAt.IsZero() {
		return false
	}
	return timeutil.DaysBetween(s.LastActiveAt, now) > 1
}

// Current возвращает длину серии, видимую на момент now: прерванная серия равна 0.
func (s Streak) Current(now time.Time) int {
	if s.IsBroken(now) {
		return 0
	}
	return s.Days
}
