package achievement

// Metric - имя агрегатной метрики, на которую ссылаются критерии.
type Metric string

const (
	MetricLessonsCompleted    Metric = "lessons_completed"
	MetricQuizzesCompleted    Metric = "quizzes_completed"
	MetricPerfectQuizScore    Metric = "perfect_quiz_score"
	MetricBeginnerLessons     Metric = "beginner_lessons"
	MetricIntermediateLessons Metric = "intermediate_lessons"
	MetricAdvancedLessons     Metric = "advanced_lessons"
	MetricDifficultyVariety   Metric = "difficulty_variety"
	MetricStreakDays          Metric = "streak_days"
	MetricTotalPoints         Metric = "total_points"
)

// Stats - агрегаты ученика, всегда пересчитываются из исходных записей.
type Stats struct {
	LessonsCompleted    int `json:"lessons_completed"`
	QuizzesCompleted    int `json:"quizzes_completed"`
	PerfectQuizScore    int `json:"perfect_quiz_score"`
	BeginnerLessons     int `json:"beginner_lessons"`
	IntermediateLessons int `json:"intermediate_lessons"`
	AdvancedLessons     int `json:"advanced_lessons"`
	DifficultyVariety   int `json:"difficulty_variety"`
	StreakDays          int `json:"streak_days"`
	TotalPoints         int `json:"total_points"`
}

// Value возвращает значение метрики. ok=false для неизвестной метрики.
func (s Stats) Value(m Metric) (int, bool) {
	switch m {
	case MetricLessonsCompleted:
		return s.LessonsCompleted, true
	case MetricQuizzesCompleted:
		return s.QuizzesCompleted, true
	case MetricPerfectQuizScore:
		return s.PerfectQuizScore, true
	case MetricBeginnerLessons:
		return s.BeginnerLessons, true
	case MetricIntermediateLessons:
		return s.IntermediateLessons, true
	case MetricAdvancedLessons:
		return s.AdvancedLessons, true
	case MetricDifficultyVariety:
		return s.DifficultyVariety, true
	case MetricStreakDays:
		return s.StreakDays, true
	case MetricTotalPoints:
		return s.TotalPoints, true
	}
	return 0, false
}

// Evaluate возвращает true, если каждая метрика критериев достигает порога.
//
// Пустые критерии не выполняются никогда, иначе достижение без условий
// выдавалось бы всем. Неизвестная метрика тоже даёт false.
func Evaluate(criteria Criteria, stats Stats) bool {
	if len(criteria) == 0 {
		return false
	}
	for metric, threshold := range criteria {
		v, ok := stats.Value(metric)
		if !ok || v < threshold {
			return false
		}
	}
	return true
}

// Progress возвращает долю выполнения критериев в диапазоне [0, 1]:
// минимум по всем метрикам. Используется для отображения незаработанных достижений.
func Progress(criteria Criteria, stats Stats) float64 {
	if len(criteria) == 0 {
		return 0
	}
	result := 1.0
	for metric, threshold := range criteria {
		v, ok := stats.Value(metric)
		if !ok {
			return 0
		}
		if threshold <= 0 {
			continue
		}
		if f := float64(v) / float64(threshold); f < result {
			result = f
		}
	}
	return result
}
