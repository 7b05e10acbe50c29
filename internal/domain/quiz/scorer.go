package quiz

import (
	"strings"

	"github.com/golearn/learning-hub/internal/domain/shared"
)

// QuestionResult - результат по одному вопросу.
type QuestionResult struct {
	QuestionID string `json:"question_id"`
	Correct    bool   `json:"correct"`
	Points     int    `json:"points"`
}

// Result - итог оценки попытки.
type Result struct {
	Score      int              `json:"score"`
	MaxScore   int              `json:"max_score"`
	Percentage float64          `json:"percentage"`
	Passed     bool             `json:"passed"`
	Questions  []QuestionResult `json:"questions"`
}

// IsPerfect сообщает, набраны ли все очки.
func (r Result) IsPerfect() bool {
	return r.MaxScore > 0 && r.Score == r.MaxScore
}

// Score оценивает ответы по снимку вопросов.
//
// Ответы сопоставляются по ID вопроса; отсутствующий ответ считается неверным.
// Если сумма очков равна нулю, возвращается нулевой результат (Passed=false)
// вместе с ErrDegenerateQuiz.
func Score(questions []Question, answers map[string]string, passingScore int) (Result, error) {
	maxScore := MaxPoints(questions)
	if maxScore == 0 {
		return Result{}, shared.ErrDegenerateQuiz
	}

	res := Result{
		MaxScore:  maxScore,
		Questions: make([]QuestionResult, 0, len(questions)),
	}

	for _, q := range questions {
		answer, ok := answers[q.ID]
		correct := ok && Matches(q.Type, q.CorrectAnswer, answer)

		qr := QuestionResult{QuestionID: q.ID, Correct: correct}
		if correct && q.Points > 0 {
			qr.Points = q.Points
			res.Score += q.Points
		}
		res.Questions = append(res.Questions, qr)
	}

	res.Percentage = float64(res.Score) * 100 / float64(maxScore)
	// score*100 >= passing*max, целочисленно, без ошибок округления
	res.Passed = res.Score*100 >= passingScore*maxScore
	return res, nil
}

// Matches сравнивает ответ с эталоном по правилу типа вопроса.
func Matches(t QuestionType, expected, given string) bool {
	switch t {
	case TypeTrueFalse:
		return strings.EqualFold(strings.TrimSpace(expected), strings.TrimSpace(given))
	case TypeFreeText, TypeCodeCompletion:
		return strings.EqualFold(collapseSpaces(expected), collapseSpaces(given))
	default:
		return strings.TrimSpace(expected) == strings.TrimSpace(given)
	}
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
