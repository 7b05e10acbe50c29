package achievement

// Defaults возвращает стартовый набор достижений платформы.
func Defaults() []Achievement {
	return []Achievement{
		{
			ID:           "first_lesson",
			Title:        "First Steps",
			Description:  "Complete your first lesson",
			Icon:         "🎯",
			BadgeColor:   "green",
			PointsReward: 50,
			Criteria:     Criteria{MetricLessonsCompleted: 1},
			IsActive:     true,
		},
		{
			ID:           "quiz_master",
			Title:        "Quiz Master",
			Description:  "Get a perfect score on any quiz",
			Icon:         "🏆",
			BadgeColor:   "gold",
			PointsReward: 100,
			Criteria:     Criteria{MetricPerfectQuizScore: 1},
			IsActive:     true,
		},
		{
			ID:           "week_streak",
			Title:        "Weekly Warrior",
			Description:  "Study for 7 consecutive days",
			Icon:         "🔥",
			BadgeColor:   "orange",
			PointsReward: 200,
			Criteria:     Criteria{MetricStreakDays: 7},
			IsActive:     true,
		},
		{
			ID:           "go_beginner",
			Title:        "GO Beginner",
			Description:  "Complete 5 beginner lessons",
			Icon:         "📚",
			BadgeColor:   "blue",
			PointsReward: 150,
			Criteria:     Criteria{MetricBeginnerLessons: 5},
			IsActive:     true,
		},
		{
			ID:           "code_explorer",
			Title:        "Code Explorer",
			Description:  "Complete lessons in 3 different difficulty levels",
			Icon:         "🗺️",
			BadgeColor:   "purple",
			PointsReward: 300,
			Criteria:     Criteria{MetricDifficultyVariety: 3},
			IsActive:     true,
		},
	}
}
