package memory

import (
	"context"
	"sort"
	"time"

	"github.com/golearn/learning-hub/internal/domain/progress"
	"github.com/golearn/learning-hub/internal/domain/shared"
)

type progressRepo struct{ s *Store }

func (r progressRepo) StartLesson(ctx context.Context, learnerID, lessonID string, at time.Time) (*progress.LessonProgress, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := pairKey{learnerID, lessonID}
	if p, ok := r.s.lessonProgress[key]; ok {
		return cloneProgress(p), false, nil
	}
	p := progress.NewLessonProgress(learnerID, lessonID, at)
	r.s.lessonProgress[key] = p
	return cloneProgress(p), true, nil
}

func (r progressRepo) CompleteLesson(ctx context.Context, learnerID, lessonID string, difficulty shared.Difficulty, at time.Time) (*progress.LessonProgress, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := pairKey{learnerID, lessonID}
	p, ok := r.s.lessonProgress[key]
	if !ok {
		// upsert: завершение без предварительного старта
		p = progress.NewLessonProgress(learnerID, lessonID, at)
		r.s.lessonProgress[key] = p
	}
	transitioned := p.Complete(difficulty, at)
	return cloneProgress(p), transitioned, nil
}

func (r progressRepo) GetLessonProgress(ctx context.Context, learnerID, lessonID string) (*progress.LessonProgress, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.lessonProgress[pairKey{learnerID, lessonID}]
	if !ok {
		return nil, shared.NewDomainError("progress", "GetLessonProgress", shared.ErrNotFound, "lesson progress not found")
	}
	return cloneProgress(p), nil
}

func (r progressRepo) CreateAttempt(ctx context.Context, attempt *progress.QuizAttempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.attempts[attempt.ID]; exists {
		return shared.NewDomainError("progress", "CreateAttempt", shared.ErrAlreadyExists, "attempt already exists")
	}
	r.s.attempts[attempt.ID] = attempt.Clone()
	return nil
}

func (r progressRepo) GetAttempt(ctx context.Context, attemptID string) (*progress.QuizAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.attempts[attemptID]
	if !ok {
		return nil, shared.ErrAttemptNotFound
	}
	return a.Clone(), nil
}

func (r progressRepo) SubmitAttempt(ctx context.Context, attemptID string, sub progress.Submission) (*progress.QuizAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.attempts[attemptID]
	if !ok {
		return nil, shared.ErrAttemptNotFound
	}
	if !a.Apply(sub) {
		return nil, shared.ErrAttemptAlreadySubmitted
	}
	return a.Clone(), nil
}

func (r progressRepo) ListAttempts(ctx context.Context, learnerID string, limit int) ([]*progress.QuizAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*progress.QuizAttempt
	for _, a := range r.s.attempts {
		if a.LearnerID == learnerID {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneProgress(p *progress.LessonProgress) *progress.LessonProgress {
	cp := *p
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
