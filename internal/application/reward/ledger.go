// Package reward contains the Reward Ledger: the only path through which
// points and achievements reach a learner.
package reward

import (
	"context"
	"fmt"
	"strings"

	"github.com/golearn/learning-hub/internal/domain/achievement"
	"github.com/golearn/learning-hub/internal/domain/shared"
	"github.com/golearn/learning-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD LEDGER
// Every award is a single atomic unit of the store (achievement.Ledger).
// A lost uniqueness race (StorageConflict) is reported as Granted=false and
// never leaves this package. Events are published after commit only.
// ══════════════════════════════════════════════════════════════════════════════

// Metrics receives ledger counters. Implemented by infrastructure/metrics.
type Metrics interface {
	PointsCredited(reason string, amount int)
	AchievementGranted(achievementID string)
	AwardFailed(achievementID string)
}

// NopMetrics discards all counters.
type NopMetrics struct{}

func (NopMetrics) PointsCredited(string, int) {}
func (NopMetrics) AchievementGranted(string)  {}
func (NopMetrics) AwardFailed(string)         {}

// Award is the outcome of a conditional grant.
type Award struct {
	// Granted is true only for the call that actually inserted the record.
	Granted bool

	// Credit describes the balance change (zero when not granted).
	Credit achievement.Credit
}

// Ledger awards points and achievements.
type Ledger struct {
	store     achievement.Ledger
	publisher shared.EventPublisher
	metrics   Metrics
	log       *logger.Logger
}

// NewLedger creates a Ledger. publisher and metrics may be nil.
func NewLedger(store achievement.Ledger, publisher shared.EventPublisher, metrics Metrics, log *logger.Logger) *Ledger {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Ledger{
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		log:       log.Named("reward_ledger"),
	}
}

// AwardAchievementIfNew grants the achievement and its points at most once
// per learner. Concurrent callers race on the store's unique key; exactly one
// of them observes Granted=true.
func (l *Ledger) AwardAchievementIfNew(ctx context.Context, learnerID, achievementID string, points int) (Award, error) {
	if learnerID == "" || achievementID == "" {
		return Award{}, shared.NewDomainError("reward", "AwardAchievementIfNew", shared.ErrValidation, "learner and achievement IDs are required")
	}
	if points < 0 {
		return Award{}, shared.NewDomainError("reward", "AwardAchievementIfNew", shared.ErrInvalidInput, "points cannot be negative")
	}

	credit, err := l.store.GrantAchievement(ctx, learnerID, achievementID, points)
	if err != nil {
		if shared.IsStorageConflict(err) {
			l.log.Debug("achievement already earned",
				logger.LearnerID(learnerID),
				logger.AchievementID(achievementID),
			)
			return Award{Granted: false}, nil
		}
		return Award{}, fmt.Errorf("reward: grant achievement %s: %w", achievementID, err)
	}

	l.metrics.AchievementGranted(achievementID)
	l.log.Info("achievement granted",
		logger.LearnerID(learnerID),
		logger.AchievementID(achievementID),
		logger.Points(points),
	)

	l.publish(shared.NewAchievementUnlockedEvent(learnerID, achievementID, points))
	l.afterCredit(learnerID, credit, achievement.AchievementReason(achievementID))

	return Award{Granted: true, Credit: credit}, nil
}

// AwardLessonPoints pays the reward of a completed lesson at most once per
// (learner, lesson). The reward fact is recorded even when points is zero,
// so Granted tells the caller whether this call settled the completion.
func (l *Ledger) AwardLessonPoints(ctx context.Context, learnerID, lessonID string, points int) (Award, error) {
	if points < 0 {
		return Award{}, shared.NewDomainError("reward", "AwardLessonPoints", shared.ErrInvalidInput, "points cannot be negative")
	}

	credit, err := l.store.GrantLessonReward(ctx, learnerID, lessonID, points)
	if err != nil {
		if shared.IsStorageConflict(err) {
			return Award{Granted: false}, nil
		}
		return Award{}, fmt.Errorf("reward: credit lesson %s: %w", lessonID, err)
	}

	l.afterCredit(learnerID, credit, achievement.LessonReason(lessonID))
	return Award{Granted: true, Credit: credit}, nil
}

// AwardQuizPassIfNew credits the first-pass bonus for a quiz at most once.
// points <= 0 disables the bonus.
func (l *Ledger) AwardQuizPassIfNew(ctx context.Context, learnerID, quizID string, points int) (Award, error) {
	if points <= 0 {
		return Award{}, nil
	}

	credit, err := l.store.GrantQuizPass(ctx, learnerID, quizID, points)
	if err != nil {
		if shared.IsStorageConflict(err) {
			return Award{Granted: false}, nil
		}
		return Award{}, fmt.Errorf("reward: grant quiz pass %s: %w", quizID, err)
	}

	l.afterCredit(learnerID, credit, achievement.QuizPassReason(quizID))
	return Award{Granted: true, Credit: credit}, nil
}

// RecordFailure counts an award that could not be completed.
func (l *Ledger) RecordFailure(achievementID string) {
	l.metrics.AwardFailed(achievementID)
}

func (l *Ledger) afterCredit(learnerID string, credit achievement.Credit, reason string) {
	if credit.Amount == 0 {
		return
	}

	l.metrics.PointsCredited(reasonKind(reason), credit.Amount)
	l.publish(shared.NewPointsAwardedEvent(learnerID, credit.Amount, credit.NewTotal, reason))

	if credit.LeveledUp() {
		l.log.Info("level up",
			logger.LearnerID(learnerID),
			logger.Int("old_level", credit.OldLevel),
			logger.Int("new_level", credit.NewLevel),
		)
		l.publish(shared.NewLevelUpEvent(learnerID, credit.OldLevel, credit.NewLevel))
	}
}

// publish never fails the award: the state change is already committed.
func (l *Ledger) publish(event shared.Event) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.Publish(event); err != nil {
		l.log.Warn("failed to publish event",
			logger.EventType(string(event.EventType())),
			logger.Err(err),
		)
	}
}

// reasonKind strips the record id so metric labels stay bounded.
func reasonKind(reason string) string {
	kind, _, _ := strings.Cut(reason, ":")
	return kind
}
