// Package command contains write operations (CQRS - Commands).
//
// The four Progress Tracker commands (start/complete lesson, start/submit
// quiz attempt) turn learner actions into durable transitions. Rewards and
// the achievement recheck run only when the store reports that a transition
// actually happened.
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/golearn/learning-hub/config"
	"github.com/golearn/learning-hub/internal/application/reward"
	"github.com/golearn/learning-hub/internal/application/saga"
	"github.com/golearn/learning-hub/internal/domain/achievement"
	"github.com/golearn/learning-hub/internal/domain/learner"
	"github.com/golearn/learning-hub/internal/domain/lesson"
	"github.com/golearn/learning-hub/internal/domain/progress"
	"github.com/golearn/learning-hub/internal/domain/quiz"
	"github.com/golearn/learning-hub/internal/domain/shared"
	"github.com/golearn/learning-hub/pkg/logger"
	"github.com/golearn/learning-hub/pkg/timeutil"
)

// Dependencies are the collaborators shared by the tracker commands.
// Flow, Publisher and Features may be nil.
type Dependencies struct {
	Learners  learner.Repository
	Lessons   lesson.Repository
	Quizzes   quiz.Repository
	Progress  progress.Repository
	Ledger    *reward.Ledger
	Flow      *saga.AchievementFlowSaga
	Publisher shared.EventPublisher
	Features  *config.FeatureFlags
	Clock     timeutil.Clock
	Logger    *logger.Logger
}

func (d Dependencies) withDefaults(component string) Dependencies {
	if d.Clock == nil {
		d.Clock = timeutil.SystemClock{}
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	d.Logger = d.Logger.Named(component)
	return d
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED STEPS
// ══════════════════════════════════════════════════════════════════════════════

// ensureLearner creates the learner row on first contact. Balances of an
// existing learner are left untouched.
func (d Dependencies) ensureLearner(ctx context.Context, learnerID string) (*learner.Learner, error) {
	l, err := learner.NewLearner(learner.NewLearnerParams{ID: learnerID})
	if err != nil {
		return nil, err
	}
	l, err = d.Learners.Ensure(ctx, l)
	if err != nil {
		return nil, fmt.Errorf("ensure learner: %w", err)
	}
	return l, nil
}

// touchStreak applies the daily streak rule. Failures are logged only.
func (d Dependencies) touchStreak(ctx context.Context, learnerID string, at time.Time) {
	if !d.Features.Enabled(config.FeatureStreaks, learnerID) {
		return
	}

	change, err := d.Learners.TouchActivity(ctx, learnerID, at)
	if err != nil {
		d.Logger.Warn("failed to update streak",
			logger.LearnerID(learnerID),
			logger.Err(err),
		)
		return
	}
	if change.Changed {
		d.publish(shared.NewStreakUpdatedEvent(learnerID, change.NewDays, change.Reset))
	}
}

// checkAchievements runs the orchestrator. It never fails the caller.
func (d Dependencies) checkAchievements(ctx context.Context, learnerID, trigger string) []*achievement.Achievement {
	if d.Flow == nil || !d.Features.Enabled(config.FeatureAchievements, learnerID) {
		return []*achievement.Achievement{}
	}

	result, err := d.Flow.Execute(ctx, saga.AchievementCheckInput{
		LearnerID:    learnerID,
		TriggerEvent: trigger,
	})
	if err != nil {
		d.Logger.Error("achievement check failed",
			logger.LearnerID(learnerID),
			logger.String("trigger", trigger),
			logger.Err(err),
		)
		return []*achievement.Achievement{}
	}
	return result.NewAchievements
}

func (d Dependencies) publish(event shared.Event) {
	if d.Publisher == nil {
		return
	}
	if err := d.Publisher.Publish(event); err != nil {
		d.Logger.Warn("failed to publish event",
			logger.EventType(string(event.EventType())),
			logger.Err(err),
		)
	}
}

// balance re-reads the learner after all credits of a request.
func (d Dependencies) balance(ctx context.Context, learnerID string) Balance {
	l, err := d.Learners.GetByID(ctx, learnerID)
	if err != nil {
		return Balance{}
	}
	return Balance{
		TotalPoints: l.Points,
		Level:       l.Level,
		StreakDays:  l.StreakDays,
	}
}

// Balance is the learner's state after a command.
type Balance struct {
	TotalPoints int
	Level       int
	StreakDays  int
}
