package memory

import (
	"context"
	"sort"
	"time"

	"github.com/golearn/learning-hub/internal/domain/achievement"
	"github.com/golearn/learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

type achievementRepo struct{ s *Store }

func (r achievementRepo) GetByID(ctx context.Context, id string) (*achievement.Achievement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.achievements[id]
	if !ok {
		return nil, shared.ErrAchievementNotFound
	}
	return cloneAchievement(a), nil
}

func (r achievementRepo) ListActive(ctx context.Context) ([]*achievement.Achievement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.activeExcept(""), nil
}

func (r achievementRepo) ListUnearned(ctx context.Context, learnerID string) ([]*achievement.Achievement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.activeExcept(learnerID), nil
}

func (r achievementRepo) ListEarned(ctx context.Context, learnerID string) ([]*achievement.UserAchievement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*achievement.UserAchievement
	for key, ua := range r.s.earned {
		if key.a == learnerID {
			cp := *ua
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EarnedAt.After(out[j].EarnedAt) })
	return out, nil
}

func (r achievementRepo) Upsert(ctx context.Context, a *achievement.Achievement) error {
	if err := a.Validate(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := cloneAchievement(a)
	if existing, ok := r.s.achievements[a.ID]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.s.achievements[a.ID] = cp
	return nil
}

// activeExcept returns active definitions, skipping those earned by learnerID.
// Caller holds the lock.
func (s *Store) activeExcept(learnerID string) []*achievement.Achievement {
	out := make([]*achievement.Achievement, 0, len(s.achievements))
	for id, a := range s.achievements {
		if !a.IsActive {
			continue
		}
		if learnerID != "" {
			if _, earned := s.earned[pairKey{learnerID, id}]; earned {
				continue
			}
		}
		out = append(out, cloneAchievement(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cloneAchievement(a *achievement.Achievement) *achievement.Achievement {
	cp := *a
	cp.Criteria = make(achievement.Criteria, len(a.Criteria))
	for k, v := range a.Criteria {
		cp.Criteria[k] = v
	}
	return &cp
}

// ══════════════════════════════════════════════════════════════════════════════
// STATS
// ══════════════════════════════════════════════════════════════════════════════

// LearnerStats implements achievement.StatsReader.
func (s *Store) LearnerStats(ctx context.Context, learnerID string) (achievement.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.learners[learnerID]
	if !ok {
		return achievement.Stats{}, shared.ErrLearnerNotFound
	}

	stats := achievement.Stats{
		StreakDays:  l.StreakDays,
		TotalPoints: l.Points,
	}

	difficulties := make(map[shared.Difficulty]struct{})
	for key, p := range s.lessonProgress {
		if key.a != learnerID || !p.IsCompleted {
			continue
		}
		stats.LessonsCompleted++
		switch p.Difficulty {
		case shared.DifficultyBeginner:
			stats.BeginnerLessons++
		case shared.DifficultyIntermediate:
			stats.IntermediateLessons++
		case shared.DifficultyAdvanced:
			stats.AdvancedLessons++
		}
		if p.Difficulty.IsValid() {
			difficulties[p.Difficulty] = struct{}{}
		}
	}
	stats.DifficultyVariety = len(difficulties)

	// каждая сданная попытка, а идеальные - по разным квизам
	perfect := make(map[string]struct{})
	for _, a := range s.attempts {
		if a.LearnerID != learnerID || !a.IsCompleted {
			continue
		}
		stats.QuizzesCompleted++
		if a.MaxScore > 0 && a.Score == a.MaxScore {
			perfect[a.QuizID] = struct{}{}
		}
	}
	stats.PerfectQuizScore = len(perfect)

	return stats, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// GrantAchievement implements achievement.Ledger.
func (s *Store) GrantAchievement(ctx context.Context, learnerID, achievementID string, points int) (achievement.Credit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.learners[learnerID]; !ok {
		return achievement.Credit{}, shared.ErrLearnerNotFound
	}
	key := pairKey{learnerID, achievementID}
	if _, exists := s.earned[key]; exists {
		return achievement.Credit{}, shared.ErrAlreadyEarned
	}

	now := time.Now().UTC()
	s.earned[key] = &achievement.UserAchievement{
		LearnerID:     learnerID,
		AchievementID: achievementID,
		EarnedAt:      now,
		Progress:      1.0,
	}
	return s.credit(learnerID, points, achievement.AchievementReason(achievementID), now), nil
}

// GrantQuizPass implements achievement.Ledger.
func (s *Store) GrantQuizPass(ctx context.Context, learnerID, quizID string, points int) (achievement.Credit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.learners[learnerID]; !ok {
		return achievement.Credit{}, shared.ErrLearnerNotFound
	}
	key := pairKey{learnerID, quizID}
	if _, exists := s.quizPasses[key]; exists {
		return achievement.Credit{}, shared.WrapError("achievement", "GrantQuizPass", shared.ErrStorageConflict, "quiz pass already rewarded", nil)
	}
	s.quizPasses[key] = struct{}{}
	return s.credit(learnerID, points, achievement.QuizPassReason(quizID), time.Now().UTC()), nil
}

// GrantLessonReward implements achievement.Ledger.
func (s *Store) GrantLessonReward(ctx context.Context, learnerID, lessonID string, points int) (achievement.Credit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.learners[learnerID]; !ok {
		return achievement.Credit{}, shared.ErrLearnerNotFound
	}
	key := pairKey{learnerID, lessonID}
	if _, exists := s.lessonRewards[key]; exists {
		return achievement.Credit{}, shared.WrapError("achievement", "GrantLessonReward", shared.ErrStorageConflict, "lesson already rewarded", nil)
	}
	s.lessonRewards[key] = struct{}{}
	return s.credit(learnerID, points, achievement.LessonReason(lessonID), time.Now().UTC()), nil
}

// credit changes the balance and appends history. Caller holds the lock.
func (s *Store) credit(learnerID string, points int, reason string, at time.Time) achievement.Credit {
	l := s.learners[learnerID]
	oldLevel := l.Level
	if oldLevel == 0 {
		oldLevel = int(shared.MinLevel)
	}

	l.Points += points
	l.Level = shared.Points(l.Points).Level(s.perLevel).Int()
	l.UpdatedAt = at

	if points != 0 {
		s.history = append(s.history, HistoryEntry{
			LearnerID: learnerID,
			Delta:     points,
			Reason:    reason,
			CreatedAt: at,
		})
	}

	return achievement.Credit{
		Granted:  true,
		Amount:   points,
		NewTotal: l.Points,
		OldLevel: oldLevel,
		NewLevel: l.Level,
	}
}
