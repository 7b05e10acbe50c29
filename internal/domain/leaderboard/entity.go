// Package leaderboard содержит модель рейтинга учеников по очкам.
package leaderboard

import (
	"fmt"
	"sort"

	"github.com/golearn/learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Rank - позиция в рейтинге (начиная с 1).
type Rank int

// IsValid проверяет, что позиция положительна.
func (r Rank) IsValid() bool {
	return r > 0
}

// IsTop10 проверяет, входит ли позиция в топ-10.
func (r Rank) IsTop10() bool {
	return r > 0 && r <= 10
}

func (r Rank) String() string {
	return fmt.Sprintf("#%d", r)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Entry - строка рейтинга.
type Entry struct {
	Rank        Rank   `json:"rank"`
	LearnerID   string `json:"learner_id"`
	DisplayName string `json:"display_name,omitempty"`
	Points      int    `json:"points"`
	Level       int    `json:"level"`
}

// NewEntry создаёт строку без позиции; позицию проставляет Ranking.
func NewEntry(learnerID, displayName string, points, perLevel int) Entry {
	return Entry{
		LearnerID:   learnerID,
		DisplayName: displayName,
		Points:      points,
		Level:       shared.Points(points).Level(perLevel).Int(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING
// ══════════════════════════════════════════════════════════════════════════════

// Ranking - упорядоченный набор строк рейтинга.
type Ranking struct {
	entries []Entry
}

// NewRanking сортирует строки по очкам (при равенстве - по ID) и проставляет позиции.
// Ученики с одинаковыми очками получают одинаковую позицию.
func NewRanking(entries []Entry) *Ranking {
	out := make([]Entry, len(entries))
	copy(out, entries)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].LearnerID < out[j].LearnerID
	})

	for i := range out {
		if i > 0 && out[i].Points == out[i-1].Points {
			out[i].Rank = out[i-1].Rank
			continue
		}
		out[i].Rank = Rank(i + 1)
	}
	return &Ranking{entries: out}
}

// Top возвращает первые n строк.
func (r *Ranking) Top(n int) []Entry {
	if n <= 0 || n > len(r.entries) {
		n = len(r.entries)
	}
	out := make([]Entry, n)
	copy(out, r.entries[:n])
	return out
}

// Find возвращает строку ученика.
func (r *Ranking) Find(learnerID string) (Entry, bool) {
	for _, e := range r.entries {
		if e.LearnerID == learnerID {
			return e, true
		}
	}
	return Entry{}, false
}

// Count возвращает число строк.
func (r *Ranking) Count() int {
	return len(r.entries)
}
