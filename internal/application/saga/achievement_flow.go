// Package saga contains business processes that orchestrate
// multiple domain operations in a coordinated manner.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golearn/learning-hub/internal/application/reward"
	"github.com/golearn/learning-hub/internal/domain/achievement"
	"github.com/golearn/learning-hub/internal/domain/shared"
	"github.com/golearn/learning-hub/pkg/logger"
	"github.com/golearn/learning-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT FLOW SAGA
// Flow: Load Stats → Load Unearned Definitions → Evaluate Criteria →
//
//	Grant Each Qualifying Achievement (isolated)
//
// Stats are recomputed from source records on every run, so the outcome does
// not depend on the order in which triggering events arrive. One failed grant
// never stops the others and never fails the triggering request.
// ══════════════════════════════════════════════════════════════════════════════

// Awarder grants a single achievement at most once.
type Awarder interface {
	AwardAchievementIfNew(ctx context.Context, learnerID, achievementID string, points int) (reward.Award, error)
	RecordFailure(achievementID string)
}

// AchievementCheckInput contains data needed to check for new achievements.
type AchievementCheckInput struct {
	// LearnerID - the learner to check achievements for.
	LearnerID string

	// TriggerEvent - what triggered this check (e.g. "lesson_completed").
	TriggerEvent string
}

// Validate checks if the input is valid.
func (i AchievementCheckInput) Validate() error {
	if i.LearnerID == "" {
		return errors.New("achievement_flow: learner ID is required")
	}
	return nil
}

// AchievementFlowResult contains the result of achievement processing.
type AchievementFlowResult struct {
	LearnerID string

	// Stats - aggregates the criteria were evaluated against.
	Stats achievement.Stats

	// NewAchievements - achievements granted by this run.
	NewAchievements []*achievement.Achievement

	// PointsAwarded - total points credited by this run.
	PointsAwarded int

	// FailedAwards - qualifying achievements that could not be granted.
	FailedAwards int

	ProcessedAt time.Time
}

// HasNewAchievements returns true if any achievements were unlocked.
func (r *AchievementFlowResult) HasNewAchievements() bool {
	return len(r.NewAchievements) > 0
}

// AchievementFlowStep represents a step in the achievement flow.
type AchievementFlowStep string

const (
	StepLoadStats           AchievementFlowStep = "load_stats"
	StepLoadCandidates      AchievementFlowStep = "load_candidates"
	StepCheckAchievements   AchievementFlowStep = "check_achievements"
	StepGrantAchievements   AchievementFlowStep = "grant_achievements"
	StepAchievementComplete AchievementFlowStep = "complete"
)

// AchievementFlowState tracks the current state of the achievement flow saga.
type AchievementFlowState struct {
	CurrentStep     AchievementFlowStep
	Input           AchievementCheckInput
	Stats           achievement.Stats
	Candidates      []*achievement.Achievement
	Qualifying      []*achievement.Achievement
	NewAchievements []*achievement.Achievement
	PointsAwarded   int
	FailedAwards    int
	StartedAt       time.Time
	CompletedAt     *time.Time
	Error           error
	FailedStep      AchievementFlowStep
}

// AchievementFlowError wraps a failure of a saga step.
type AchievementFlowError struct {
	Step      AchievementFlowStep
	LearnerID string
	Cause     error
	Message   string
}

func (e *AchievementFlowError) Error() string {
	return e.Message
}

func (e *AchievementFlowError) Unwrap() error {
	return e.Cause
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT FLOW SAGA IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AchievementFlowSaga is the Achievement Orchestrator.
type AchievementFlowSaga struct {
	stats        achievement.StatsReader
	achievements achievement.Repository
	awarder      Awarder
	log          *logger.Logger

	retrier               *retry.Retrier
	maxAchievementsPerRun int
}

// AchievementFlowConfig contains configuration for the achievement flow saga.
type AchievementFlowConfig struct {
	// MaxAchievementsPerRun caps grants per run. 0 means no cap.
	MaxAchievementsPerRun int

	// RetryOnce enables a single retry of a grant that failed with a
	// retryable storage error.
	RetryOnce bool
}

// DefaultAchievementFlowConfig returns default configuration.
func DefaultAchievementFlowConfig() AchievementFlowConfig {
	return AchievementFlowConfig{
		MaxAchievementsPerRun: 0,
		RetryOnce:             true,
	}
}

// NewAchievementFlowSaga creates a new achievement flow saga with all dependencies.
func NewAchievementFlowSaga(
	stats achievement.StatsReader,
	achievements achievement.Repository,
	awarder Awarder,
	log *logger.Logger,
	config AchievementFlowConfig,
) *AchievementFlowSaga {
	if log == nil {
		log = logger.Nop()
	}
	s := &AchievementFlowSaga{
		stats:                 stats,
		achievements:          achievements,
		awarder:               awarder,
		log:                   log.Named("achievement_flow"),
		maxAchievementsPerRun: config.MaxAchievementsPerRun,
	}

	if config.RetryOnce {
		s.retrier = retry.AwardRetrier(shared.IsRetryable, func(attempt int, err error, delay time.Duration) {
			s.log.Warn("retrying achievement grant",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		})
	}
	return s
}

// Execute runs the complete achievement checking and granting process.
func (s *AchievementFlowSaga) Execute(ctx context.Context, input AchievementCheckInput) (*AchievementFlowResult, error) {
	state := &AchievementFlowState{
		CurrentStep: StepLoadStats,
		Input:       input,
		StartedAt:   time.Now().UTC(),
	}

	if err := input.Validate(); err != nil {
		state.FailedStep = StepLoadStats
		state.Error = err
		return nil, s.wrapError(state, err)
	}

	// Step 1: Recompute stats
	if err := s.stepLoadStats(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 2: Load definitions the learner does not have yet
	state.CurrentStep = StepLoadCandidates
	if err := s.stepLoadCandidates(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 3: Evaluate criteria
	state.CurrentStep = StepCheckAchievements
	s.stepCheckAchievements(state)

	// Step 4: Grant, each award isolated
	if len(state.Qualifying) > 0 {
		state.CurrentStep = StepGrantAchievements
		s.stepGrantAchievements(ctx, state)
	}

	state.CurrentStep = StepAchievementComplete
	now := time.Now().UTC()
	state.CompletedAt = &now

	newAchievements := state.NewAchievements
	if newAchievements == nil {
		newAchievements = []*achievement.Achievement{}
	}

	return &AchievementFlowResult{
		LearnerID:       input.LearnerID,
		Stats:           state.Stats,
		NewAchievements: newAchievements,
		PointsAwarded:   state.PointsAwarded,
		FailedAwards:    state.FailedAwards,
		ProcessedAt:     now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SAGA STEPS
// ══════════════════════════════════════════════════════════════════════════════

func (s *AchievementFlowSaga) stepLoadStats(ctx context.Context, state *AchievementFlowState) error {
	stats, err := s.stats.LearnerStats(ctx, state.Input.LearnerID)
	if err != nil {
		state.FailedStep = StepLoadStats
		state.Error = fmt.Errorf("failed to load stats: %w", err)
		return state.Error
	}

	state.Stats = stats
	return nil
}

func (s *AchievementFlowSaga) stepLoadCandidates(ctx context.Context, state *AchievementFlowState) error {
	candidates, err := s.achievements.ListUnearned(ctx, state.Input.LearnerID)
	if err != nil {
		state.FailedStep = StepLoadCandidates
		state.Error = fmt.Errorf("failed to load unearned achievements: %w", err)
		return state.Error
	}

	state.Candidates = candidates
	return nil
}

func (s *AchievementFlowSaga) stepCheckAchievements(state *AchievementFlowState) {
	var qualifying []*achievement.Achievement
	for _, a := range state.Candidates {
		if achievement.Evaluate(a.Criteria, state.Stats) {
			qualifying = append(qualifying, a)
		}
	}

	if s.maxAchievementsPerRun > 0 && len(qualifying) > s.maxAchievementsPerRun {
		qualifying = qualifying[:s.maxAchievementsPerRun]
	}

	state.Qualifying = qualifying
}

// stepGrantAchievements never returns an error: a failed grant is logged,
// counted and left for the next qualifying event to pick up.
func (s *AchievementFlowSaga) stepGrantAchievements(ctx context.Context, state *AchievementFlowState) {
	for _, a := range state.Qualifying {
		award, err := s.grant(ctx, state.Input.LearnerID, a)
		if err != nil {
			state.FailedAwards++
			s.awarder.RecordFailure(a.ID)
			s.log.Error("failed to grant achievement",
				logger.LearnerID(state.Input.LearnerID),
				logger.AchievementID(a.ID),
				logger.String("trigger", state.Input.TriggerEvent),
				logger.Err(err),
			)
			continue
		}
		if !award.Granted {
			// другой запрос выиграл гонку
			continue
		}

		state.NewAchievements = append(state.NewAchievements, a)
		state.PointsAwarded += award.Credit.Amount
	}
}

func (s *AchievementFlowSaga) grant(ctx context.Context, learnerID string, a *achievement.Achievement) (reward.Award, error) {
	if s.retrier == nil {
		return s.awarder.AwardAchievementIfNew(ctx, learnerID, a.ID, a.PointsReward)
	}

	var award reward.Award
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		award, err = s.awarder.AwardAchievementIfNew(ctx, learnerID, a.ID, a.PointsReward)
		return err
	})
	return award, err
}

func (s *AchievementFlowSaga) wrapError(state *AchievementFlowState, err error) error {
	return &AchievementFlowError{
		Step:      state.FailedStep,
		LearnerID: state.Input.LearnerID,
		Cause:     err,
		Message:   fmt.Sprintf("achievement flow failed at step '%s': %v", state.FailedStep, err),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CONVENIENCE METHODS
// ══════════════════════════════════════════════════════════════════════════════

// CheckAfterLessonCompleted runs the flow after a lesson completion transition.
func (s *AchievementFlowSaga) CheckAfterLessonCompleted(ctx context.Context, learnerID string) (*AchievementFlowResult, error) {
	return s.Execute(ctx, AchievementCheckInput{
		LearnerID:    learnerID,
		TriggerEvent: "lesson_completed",
	})
}

// CheckAfterQuizSubmitted runs the flow after a quiz attempt is scored.
func (s *AchievementFlowSaga) CheckAfterQuizSubmitted(ctx context.Context, learnerID string) (*AchievementFlowResult, error) {
	return s.Execute(ctx, AchievementCheckInput{
		LearnerID:    learnerID,
		TriggerEvent: "quiz_submitted",
	})
}
