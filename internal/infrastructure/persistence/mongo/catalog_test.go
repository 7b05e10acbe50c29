package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/golearn/learning-hub/internal/domain/lesson"
	"github.com/golearn/learning-hub/internal/domain/quiz"
	"github.com/golearn/learning-hub/internal/domain/shared"
)

func TestConnect_RequiresURI(t *testing.T) {
	_, err := Connect(context.Background(), Config{})
	require.Error(t, err)
}

func TestLessonDoc_UsesStringID(t *testing.T) {
	l := &lesson.Lesson{
		ID:          "go-basics",
		Title:       "Go basics",
		Difficulty:  shared.DifficultyBeginner,
		IsPublished: true,
	}

	raw, err := bson.Marshal(toLessonDoc(l))
	require.NoError(t, err)

	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	assert.Equal(t, "go-basics", m["_id"])
	assert.Equal(t, "beginner", m["difficulty"])
	// пустые теги сохраняются массивом, а не null
	assert.IsType(t, bson.A{}, m["tags"])
	assert.Empty(t, m["tags"])
}

func TestQuizDoc_KeepsQuestionsAndOptionalLimit(t *testing.T) {
	limit := 10
	q := &quiz.Quiz{
		ID:       "q1",
		LessonID: "go-basics",
		Title:    "Basics",
		Questions: []quiz.Question{
			{ID: "1", Text: "2+2?", Type: quiz.TypeMultipleChoice, Options: []string{"3", "4"}, CorrectAnswer: "4", Points: 10},
		},
		PassingScore:     70,
		TimeLimitMinutes: &limit,
		IsActive:         true,
		CreatedAt:        time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	raw, err := bson.Marshal(toQuizDoc(q))
	require.NoError(t, err)

	var doc quizDoc
	require.NoError(t, bson.Unmarshal(raw, &doc))
	got := doc.toDomain()
	require.Len(t, got.Questions, 1)
	assert.Equal(t, "2+2?", got.Questions[0].Text)
	assert.Equal(t, "4", got.Questions[0].CorrectAnswer)
	require.NotNil(t, got.TimeLimitMinutes)
	assert.Equal(t, 10, *got.TimeLimitMinutes)

	// без лимита поле не пишется
	q.TimeLimitMinutes = nil
	raw, err = bson.Marshal(toQuizDoc(q))
	require.NoError(t, err)
	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	_, present := m["time_limit_minutes"]
	assert.False(t, present)
}

func TestQuizDoc_DefaultsOnlyMissingFields(t *testing.T) {
	raw, err := bson.Marshal(bson.M{
		"_id":       "q2",
		"lesson_id": "go-basics",
		"title":     "Hand written",
		"is_active": true,
		"questions": bson.A{
			bson.M{"id": "a", "question": "no weight", "type": "true_false", "correct_answer": "true"},
			bson.M{"id": "b", "question": "free", "type": "free_text", "correct_answer": "x", "points": 0},
		},
	})
	require.NoError(t, err)

	var doc quizDoc
	require.NoError(t, bson.Unmarshal(raw, &doc))
	got := doc.toDomain()
	assert.Equal(t, quiz.DefaultPassingScore, got.PassingScore)
	require.Len(t, got.Questions, 2)
	assert.Equal(t, quiz.DefaultQuestionPoints, got.Questions[0].Points)
	assert.Zero(t, got.Questions[1].Points)
	assert.Equal(t, 1, got.MaxPoints)

	// явный ноль переживает запись и чтение
	got.PassingScore = 0
	raw, err = bson.Marshal(toQuizDoc(got))
	require.NoError(t, err)
	doc = quizDoc{}
	require.NoError(t, bson.Unmarshal(raw, &doc))
	again := doc.toDomain()
	assert.Zero(t, again.PassingScore)
	assert.Zero(t, again.Questions[1].Points)
}
