package quiz

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golearn/learning-hub/internal/domain/shared"
)

func weightedQuestions() []Question {
	return []Question{
		{ID: "0", Type: TypeMultipleChoice, CorrectAnswer: "Google", Points: 10},
		{ID: "1", Type: TypeTrueFalse, CorrectAnswer: "true", Points: 5},
		{ID: "2", Type: TypeFreeText, CorrectAnswer: `""`, Points: 15},
	}
}

func TestScore_Weighted(t *testing.T) {
	tests := []struct {
		name    string
		answers map[string]string
		score   int
		passed  bool
		perfect bool
	}{
		{
			name:    "only first correct",
			answers: map[string]string{"0": "Google", "1": "false", "2": "nil"},
			score:   10,
			passed:  false,
		},
		{
			name:    "first and third correct",
			answers: map[string]string{"0": "Google", "2": `""`},
			score:   25,
			passed:  true, // 83% >= 70%
		},
		{
			name:    "all correct",
			answers: map[string]string{"0": "Google", "1": "true", "2": `""`},
			score:   30,
			passed:  true,
			perfect: true,
		},
		{
			name:    "no answers",
			answers: nil,
			score:   0,
			passed:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Score(weightedQuestions(), tt.answers, 70)
			require.NoError(t, err)
			assert.Equal(t, tt.score, res.Score)
			assert.Equal(t, 30, res.MaxScore)
			assert.Equal(t, tt.passed, res.Passed)
			assert.Equal(t, tt.perfect, res.IsPerfect())
			assert.Len(t, res.Questions, 3)
		})
	}
}

func TestScore_ExactThreshold(t *testing.T) {
	questions := []Question{
		{ID: "a", Type: TypeMultipleChoice, CorrectAnswer: "x", Points: 7},
		{ID: "b", Type: TypeMultipleChoice, CorrectAnswer: "y", Points: 3},
	}

	res, err := Score(questions, map[string]string{"a": "x"}, 70)
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.InDelta(t, 70.0, res.Percentage, 0.0001)
}

func TestScore_DegenerateQuiz(t *testing.T) {
	res, err := Score(nil, map[string]string{"0": "x"}, 70)
	assert.ErrorIs(t, err, shared.ErrDegenerateContent)
	assert.False(t, res.Passed)
	assert.Equal(t, 0, res.MaxScore)

	_, err = Score([]Question{{ID: "0", Type: TypeFreeText, CorrectAnswer: "x", Points: 0}}, nil, 70)
	assert.True(t, shared.IsDegenerate(err))
}

func TestMatches(t *testing.T) {
	tests := []struct {
		typ      QuestionType
		expected string
		given    string
		want     bool
	}{
		{TypeTrueFalse, "true", "True", true},
		{TypeTrueFalse, "true", " TRUE ", true},
		{TypeTrueFalse, "true", "false", false},
		{TypeMultipleChoice, "var name string", " var name string ", true},
		{TypeMultipleChoice, "Google", "google", false},
		{TypeFreeText, "empty  string", "Empty string", true},
		{TypeCodeCompletion, "fmt.Println(x)", "  fmt.Println(x)\n", true},
		{TypeCodeCompletion, "fmt.Println(x)", "fmt.Printf(x)", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Matches(tt.typ, tt.expected, tt.given), "%s: %q vs %q", tt.typ, tt.expected, tt.given)
	}
}

func TestQuiz_RedactedDoesNotMutate(t *testing.T) {
	q := &Quiz{
		ID:       "quiz-1",
		LessonID: "lesson-1",
		Questions: []Question{
			{Text: "Who built Go?", Type: TypeMultipleChoice, Options: []string{"Google", "Apple"}, CorrectAnswer: "Google", Explanation: "Google, 2007", Points: 10},
			{Text: "Go is compiled", Type: TypeTrueFalse, CorrectAnswer: "true", Points: 5},
		},
	}
	q.Normalize()

	redacted := q.Redacted()
	require.Len(t, redacted, 2)
	for _, r := range redacted {
		assert.Empty(t, r.CorrectAnswer)
		assert.Empty(t, r.Explanation)
	}
	redacted[0].Options[0] = "changed"

	assert.Equal(t, "Google", q.Questions[0].CorrectAnswer)
	assert.Equal(t, "Google, 2007", q.Questions[0].Explanation)
	assert.Equal(t, "Google", q.Questions[0].Options[0])
	assert.Equal(t, "true", q.Questions[1].CorrectAnswer)
}

func TestQuiz_Normalize(t *testing.T) {
	q := &Quiz{
		ID:       "quiz-1",
		LessonID: "lesson-1",
		Questions: []Question{
			{Type: TypeTrueFalse, CorrectAnswer: "true"},
			{ID: "custom", CorrectAnswer: "x", Points: 4},
		},
	}
	q.Normalize()

	assert.Zero(t, q.PassingScore, "an explicit zero passing score is kept")
	assert.Equal(t, "0", q.Questions[0].ID)
	assert.Equal(t, "custom", q.Questions[1].ID)
	assert.Equal(t, TypeMultipleChoice, q.Questions[1].Type)
	assert.Zero(t, q.Questions[0].Points, "an explicit zero weight is kept")
	assert.Equal(t, 4, q.MaxPoints)
	assert.NoError(t, q.Validate())

	q.Questions = append(q.Questions, Question{ID: "custom", Type: TypeFreeText, Points: 1})
	q.RecalculateMaxPoints()
	assert.Equal(t, 5, q.MaxPoints)
	assert.Error(t, q.Validate())

	q.Questions = q.Questions[:2]
	q.PassingScore = 101
	assert.Error(t, q.Validate())
}

func TestQuestion_UnmarshalDefaultsOnlyMissingPoints(t *testing.T) {
	var questions []Question
	err := json.Unmarshal([]byte(`[
		{"id": "a", "question": "no weight", "type": "true_false", "correct_answer": "true"},
		{"id": "b", "question": "free", "type": "free_text", "correct_answer": "x", "points": 0},
		{"id": "c", "question": "heavy", "type": "multiple_choice", "correct_answer": "y", "points": 7}
	]`), &questions)
	require.NoError(t, err)
	require.Len(t, questions, 3)

	assert.Equal(t, DefaultQuestionPoints, questions[0].Points)
	assert.Equal(t, "no weight", questions[0].Text)
	assert.Equal(t, TypeTrueFalse, questions[0].Type)
	assert.Zero(t, questions[1].Points)
	assert.Equal(t, 7, questions[2].Points)
}

func TestScore_AllZeroWeightQuizIsDegenerate(t *testing.T) {
	q := &Quiz{
		ID:       "quiz-1",
		LessonID: "lesson-1",
		Questions: []Question{
			{Type: TypeTrueFalse, CorrectAnswer: "true", Points: 0},
			{Type: TypeTrueFalse, CorrectAnswer: "false", Points: 0},
		},
	}
	q.Normalize()
	require.Zero(t, q.MaxPoints)

	_, err := Score(q.Snapshot(), map[string]string{"0": "true", "1": "false"}, q.PassingScore)
	require.Error(t, err)
	assert.True(t, shared.IsDegenerate(err))
}
