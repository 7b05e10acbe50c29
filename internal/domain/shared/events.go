package shared

import (
	"encoding/json"
	"time"
)

// EventType - имя события, оно же routing key в брокере.
type EventType string

// События публикуются только после фиксации изменения, которое описывают.
const (
	EventLessonStarted   EventType = "progress.lesson_started"
	EventLessonCompleted EventType = "progress.lesson_completed"
	EventQuizStarted     EventType = "progress.quiz_started"
	EventQuizSubmitted   EventType = "progress.quiz_submitted"

	EventPointsAwarded       EventType = "reward.points_awarded"
	EventAchievementUnlocked EventType = "reward.achievement_unlocked"

	EventLevelUp       EventType = "learner.level_up"
	EventStreakUpdated EventType = "learner.streak_updated"
)

// Event - то, что ходит по шине. Payload сериализуется в тело сообщения.
type Event interface {
	EventType() EventType
	OccurredAt() time.Time
	AggregateID() string
	Payload() any
}

// Record - событие с данными D. Агрегат всегда ученик.
type Record[D any] struct {
	Type      EventType
	At        time.Time
	LearnerID string
	Data      D
}

func newRecord[D any](t EventType, learnerID string, data D) Record[D] {
	return Record[D]{Type: t, At: time.Now().UTC(), LearnerID: learnerID, Data: data}
}

func (r Record[D]) EventType() EventType  { return r.Type }
func (r Record[D]) OccurredAt() time.Time { return r.At }
func (r Record[D]) AggregateID() string   { return r.LearnerID }
func (r Record[D]) Payload() any          { return r.Data }

// ══════════════════════════════════════════════════════════════════════════════
// ПРОГРЕСС
// ══════════════════════════════════════════════════════════════════════════════

type LessonStarted struct {
	LearnerID string `json:"learner_id"`
	LessonID  string `json:"lesson_id"`
}

type LessonStartedEvent = Record[LessonStarted]

func NewLessonStartedEvent(learnerID, lessonID string) LessonStartedEvent {
	return newRecord(EventLessonStarted, learnerID, LessonStarted{learnerID, lessonID})
}

// LessonCompleted публикуется только при переходе "не пройден -> пройден".
type LessonCompleted struct {
	LearnerID    string `json:"learner_id"`
	LessonID     string `json:"lesson_id"`
	Difficulty   string `json:"difficulty"`
	PointsEarned int    `json:"points_earned"`
}

type LessonCompletedEvent = Record[LessonCompleted]

func NewLessonCompletedEvent(learnerID, lessonID, difficulty string, points int) LessonCompletedEvent {
	return newRecord(EventLessonCompleted, learnerID, LessonCompleted{learnerID, lessonID, difficulty, points})
}

type QuizStarted struct {
	LearnerID string `json:"learner_id"`
	QuizID    string `json:"quiz_id"`
	AttemptID string `json:"attempt_id"`
}

type QuizStartedEvent = Record[QuizStarted]

func NewQuizStartedEvent(learnerID, quizID, attemptID string) QuizStartedEvent {
	return newRecord(EventQuizStarted, learnerID, QuizStarted{learnerID, quizID, attemptID})
}

// QuizSubmitted: ровно одно на попытку, после сохранения результата.
type QuizSubmitted struct {
	LearnerID string `json:"learner_id"`
	QuizID    string `json:"quiz_id"`
	AttemptID string `json:"attempt_id"`
	Score     int    `json:"score"`
	MaxScore  int    `json:"max_score"`
	Passed    bool   `json:"passed"`
}

type QuizSubmittedEvent = Record[QuizSubmitted]

func NewQuizSubmittedEvent(learnerID, quizID, attemptID string, score, maxScore int, passed bool) QuizSubmittedEvent {
	return newRecord(EventQuizSubmitted, learnerID, QuizSubmitted{learnerID, quizID, attemptID, score, maxScore, passed})
}

// ══════════════════════════════════════════════════════════════════════════════
// НАГРАДЫ
// ══════════════════════════════════════════════════════════════════════════════

// PointsAwarded - каждое зафиксированное начисление. Reason вида
// "lesson_completed:<id>" или "achievement:<id>".
type PointsAwarded struct {
	LearnerID string `json:"learner_id"`
	Amount    int    `json:"amount"`
	NewTotal  int    `json:"new_total"`
	Reason    string `json:"reason"`
}

type PointsAwardedEvent = Record[PointsAwarded]

func NewPointsAwardedEvent(learnerID string, amount, newTotal int, reason string) PointsAwardedEvent {
	return newRecord(EventPointsAwarded, learnerID, PointsAwarded{learnerID, amount, newTotal, reason})
}

type AchievementUnlocked struct {
	LearnerID     string `json:"learner_id"`
	AchievementID string `json:"achievement_id"`
	Points        int    `json:"points"`
}

type AchievementUnlockedEvent = Record[AchievementUnlocked]

func NewAchievementUnlockedEvent(learnerID, achievementID string, points int) AchievementUnlockedEvent {
	return newRecord(EventAchievementUnlocked, learnerID, AchievementUnlocked{learnerID, achievementID, points})
}

// ══════════════════════════════════════════════════════════════════════════════
// УЧЕНИК
// ══════════════════════════════════════════════════════════════════════════════

type LevelUp struct {
	LearnerID string `json:"learner_id"`
	OldLevel  int    `json:"old_level"`
	NewLevel  int    `json:"new_level"`
}

type LevelUpEvent = Record[LevelUp]

func NewLevelUpEvent(learnerID string, oldLevel, newLevel int) LevelUpEvent {
	return newRecord(EventLevelUp, learnerID, LevelUp{learnerID, oldLevel, newLevel})
}

type StreakUpdated struct {
	LearnerID  string `json:"learner_id"`
	StreakDays int    `json:"streak_days"`
	Reset      bool   `json:"reset"`
}

type StreakUpdatedEvent = Record[StreakUpdated]

func NewStreakUpdatedEvent(learnerID string, days int, reset bool) StreakUpdatedEvent {
	return newRecord(EventStreakUpdated, learnerID, StreakUpdated{learnerID, days, reset})
}

// ══════════════════════════════════════════════════════════════════════════════
// ТРАНСПОРТ
// ══════════════════════════════════════════════════════════════════════════════

// EventEnvelope - формат сообщения в брокере.
type EventEnvelope struct {
	ID          string          `json:"id"`
	Type        EventType       `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Version     int             `json:"version"`
	Payload     json.RawMessage `json:"payload"`
}

// envelopeVersion растёт при несовместимом изменении полезной нагрузки.
const envelopeVersion = 1

func NewEventEnvelope(id string, event Event) (EventEnvelope, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return EventEnvelope{}, err
	}
	return EventEnvelope{
		ID:          id,
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Version:     envelopeVersion,
		Payload:     payload,
	}, nil
}

type EventHandler func(event Event) error

type EventPublisher interface {
	Publish(event Event) error
}

type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
}
