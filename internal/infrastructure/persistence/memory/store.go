// Package memory implements every repository of the engine in process memory.
//
// A single mutex guards all maps, so each method is one atomic unit, the
// same unit a Postgres transaction gives. Conditional writes
// (lesson completion, attempt submission, reward grants) therefore keep
// their exactly-once semantics under concurrent callers. Used by tests and
// by `hub serve --memory` for local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/golearn/learning-hub/internal/domain/achievement"
	"github.com/golearn/learning-hub/internal/domain/learner"
	"github.com/golearn/learning-hub/internal/domain/lesson"
	"github.com/golearn/learning-hub/internal/domain/progress"
	"github.com/golearn/learning-hub/internal/domain/quiz"
	"github.com/golearn/learning-hub/internal/domain/shared"
)

type pairKey struct {
	a, b string
}

// HistoryEntry is one row of the points ledger.
type HistoryEntry struct {
	LearnerID string
	Delta     int
	Reason    string
	CreatedAt time.Time
}

// Store holds all state.
type Store struct {
	mu sync.Mutex

	perLevel int

	learners       map[string]*learner.Learner
	lessons        map[string]*lesson.Lesson
	quizzes        map[string]*quiz.Quiz
	lessonProgress map[pairKey]*progress.LessonProgress
	attempts       map[string]*progress.QuizAttempt
	achievements   map[string]*achievement.Achievement
	earned         map[pairKey]*achievement.UserAchievement
	quizPasses     map[pairKey]struct{}
	lessonRewards  map[pairKey]struct{}
	history        []HistoryEntry
}

// NewStore creates an empty store. perLevel is the level step used when
// points change.
func NewStore(perLevel int) *Store {
	if perLevel <= 0 {
		perLevel = shared.DefaultPointsPerLevel
	}
	return &Store{
		perLevel:       perLevel,
		learners:       make(map[string]*learner.Learner),
		lessons:        make(map[string]*lesson.Lesson),
		quizzes:        make(map[string]*quiz.Quiz),
		lessonProgress: make(map[pairKey]*progress.LessonProgress),
		attempts:       make(map[string]*progress.QuizAttempt),
		achievements:   make(map[string]*achievement.Achievement),
		earned:         make(map[pairKey]*achievement.UserAchievement),
		quizPasses:     make(map[pairKey]struct{}),
		lessonRewards:  make(map[pairKey]struct{}),
	}
}

// Views over the store, one per repository contract.
func (s *Store) Learners() learner.Repository         { return learnerRepo{s} }
func (s *Store) Lessons() lesson.Repository           { return lessonRepo{s} }
func (s *Store) Quizzes() quiz.Repository             { return quizRepo{s} }
func (s *Store) Progress() progress.Repository        { return progressRepo{s} }
func (s *Store) Achievements() achievement.Repository { return achievementRepo{s} }
func (s *Store) Stats() achievement.StatsReader       { return s }
func (s *Store) Ledger() achievement.Ledger           { return s }
func (s *Store) PointsLog() achievement.HistoryReader { return s }

// History returns the points ledger of a learner in insertion order.
func (s *Store) History(learnerID string) []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []HistoryEntry
	for _, h := range s.history {
		if h.LearnerID == learnerID {
			out = append(out, h)
		}
	}
	return out
}

// PointsHistory implements achievement.HistoryReader.
func (s *Store) PointsHistory(ctx context.Context, learnerID string, limit int) ([]achievement.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []achievement.HistoryEntry{}
	for i := len(s.history) - 1; i >= 0; i-- {
		h := s.history[i]
		if h.LearnerID != learnerID {
			continue
		}
		out = append(out, achievement.HistoryEntry{Delta: h.Delta, Reason: h.Reason, CreatedAt: h.CreatedAt})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Ping implements the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// LEARNERS
// ══════════════════════════════════════════════════════════════════════════════

type learnerRepo struct{ s *Store }

func (r learnerRepo) GetByID(ctx context.Context, id string) (*learner.Learner, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	l, ok := r.s.learners[id]
	if !ok {
		return nil, shared.ErrLearnerNotFound
	}
	return cloneLearner(l), nil
}

func (r learnerRepo) Ensure(ctx context.Context, l *learner.Learner) (*learner.Learner, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if existing, ok := r.s.learners[l.ID]; ok {
		return cloneLearner(existing), nil
	}
	cp := cloneLearner(l)
	r.s.learners[l.ID] = cp
	return cloneLearner(cp), nil
}

func (r learnerRepo) TouchActivity(ctx context.Context, learnerID string, at time.Time) (learner.StreakChange, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	l, ok := r.s.learners[learnerID]
	if !ok {
		return learner.StreakChange{}, shared.ErrLearnerNotFound
	}

	current := learner.Streak{Days: l.StreakDays}
	if l.LastActivityAt != nil {
		current.LastActiveAt = *l.LastActivityAt
	}
	next, change := current.RecordActivity(at)

	l.StreakDays = next.Days
	last := next.LastActiveAt
	l.LastActivityAt = &last
	l.UpdatedAt = at.UTC()
	return change, nil
}

func (r learnerRepo) TopByPoints(ctx context.Context, limit int) ([]*learner.Learner, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*learner.Learner, 0, len(r.s.learners))
	for _, l := range r.s.learners {
		out = append(out, cloneLearner(l))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneLearner(l *learner.Learner) *learner.Learner {
	cp := *l
	if l.LastActivityAt != nil {
		t := *l.LastActivityAt
		cp.LastActivityAt = &t
	}
	return &cp
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

type lessonRepo struct{ s *Store }

func (r lessonRepo) GetByID(ctx context.Context, id string) (*lesson.Lesson, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	l, ok := r.s.lessons[id]
	if !ok {
		return nil, shared.ErrLessonNotFound
	}
	cp := *l
	return &cp, nil
}

func (r lessonRepo) List(ctx context.Context) ([]*lesson.Lesson, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*lesson.Lesson, 0, len(r.s.lessons))
	for _, l := range r.s.lessons {
		if !l.IsPublished {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (r lessonRepo) Save(ctx context.Context, l *lesson.Lesson) error {
	l.Normalize()
	if err := l.Validate(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *l
	r.s.lessons[l.ID] = &cp
	return nil
}

type quizRepo struct{ s *Store }

func (r quizRepo) GetByID(ctx context.Context, id string) (*quiz.Quiz, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	q, ok := r.s.quizzes[id]
	if !ok {
		return nil, shared.ErrQuizNotFound
	}
	return cloneQuiz(q), nil
}

func (r quizRepo) ListByLesson(ctx context.Context, lessonID string) ([]*quiz.Quiz, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*quiz.Quiz
	for _, q := range r.s.quizzes {
		if q.LessonID == lessonID && q.IsActive {
			out = append(out, cloneQuiz(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r quizRepo) Save(ctx context.Context, q *quiz.Quiz) error {
	q.Normalize()
	if err := q.Validate(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.quizzes[q.ID] = cloneQuiz(q)
	return nil
}

func cloneQuiz(q *quiz.Quiz) *quiz.Quiz {
	cp := *q
	cp.Questions = q.Snapshot()
	return &cp
}
