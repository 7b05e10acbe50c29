package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/golearn/learning-hub/internal/domain/achievement"
	"github.com/golearn/learning-hub/internal/domain/lesson"
	"github.com/golearn/learning-hub/internal/domain/quiz"
	"github.com/golearn/learning-hub/internal/domain/shared"
	"github.com/golearn/learning-hub/pkg/logger"
)

func newSeedCmd(flags *globalFlags) *cobra.Command {
	var demo bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert the default achievements (and a demo catalog)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			a, err := buildApp(ctx, cfg, log, flags)
			if err != nil {
				return err
			}
			defer a.close()

			if err := seedAchievements(ctx, a.store.Achievements()); err != nil {
				return fmt.Errorf("seed achievements: %w", err)
			}
			log.Info("achievements seeded", logger.Int("count", len(achievement.Defaults())))

			if demo {
				if err := seedDemoCatalog(ctx, a.lessons, a.quizzes); err != nil {
					return fmt.Errorf("seed catalog: %w", err)
				}
				log.Info("demo catalog seeded", logger.Int("lessons", len(demoLessons())))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&demo, "demo", false, "also write a small demo catalog")
	return cmd
}

// seedAchievements идемпотентно записывает стандартные определения.
func seedAchievements(ctx context.Context, repo achievement.Repository) error {
	for _, def := range achievement.Defaults() {
		if err := repo.Upsert(ctx, &def); err != nil {
			return fmt.Errorf("%s: %w", def.ID, err)
		}
	}
	return nil
}

// seedDemoCatalog записывает демонстрационные уроки с квизами.
func seedDemoCatalog(ctx context.Context, lessons lesson.Repository, quizzes quiz.Repository) error {
	for _, l := range demoLessons() {
		if err := lessons.Save(ctx, l); err != nil {
			return fmt.Errorf("lesson %s: %w", l.ID, err)
		}
	}
	for _, q := range demoQuizzes() {
		if err := quizzes.Save(ctx, q); err != nil {
			return fmt.Errorf("quiz %s: %w", q.ID, err)
		}
	}
	return nil
}

func demoLessons() []*lesson.Lesson {
	return []*lesson.Lesson{
		{
			ID:               "go-basics-variables",
			Title:            "Variables and types",
			Description:      "Declaring variables, zero values and basic types.",
			Difficulty:       shared.DifficultyBeginner,
			EstimatedMinutes: 15,
			PointsReward:     10,
			Order:            1,
			Tags:             []string{"go", "basics"},
			IsPublished:      true,
		},
		{
			ID:               "go-basics-functions",
			Title:            "Functions",
			Description:      "Multiple return values and named results.",
			Difficulty:       shared.DifficultyBeginner,
			EstimatedMinutes: 20,
			PointsReward:     10,
			Order:            2,
			Tags:             []string{"go", "basics"},
			IsPublished:      true,
		},
		{
			ID:               "go-concurrency-channels",
			Title:            "Channels",
			Description:      "Unbuffered and buffered channels, select.",
			Difficulty:       shared.DifficultyIntermediate,
			EstimatedMinutes: 30,
			PointsReward:     25,
			Order:            3,
			Tags:             []string{"go", "concurrency"},
			IsPublished:      true,
		},
	}
}

func demoQuizzes() []*quiz.Quiz {
	return []*quiz.Quiz{
		{
			ID:           "go-basics-variables-quiz",
			LessonID:     "go-basics-variables",
			Title:        "Variables check",
			PassingScore: 70,
			IsActive:     true,
			Questions: []quiz.Question{
				{
					Text:          "What is the zero value of an int?",
					Type:          quiz.TypeMultipleChoice,
					Options:       []string{"0", "nil", "undefined"},
					CorrectAnswer: "0",
					Points:        10,
				},
				{
					Text:          "A string can be nil.",
					Type:          quiz.TypeTrueFalse,
					CorrectAnswer: "false",
					Points:        10,
				},
				{
					Text:          "Complete the short declaration: x ___ 5",
					Type:          quiz.TypeCodeCompletion,
					CorrectAnswer: ":=",
					Points:        10,
				},
			},
		},
		{
			ID:           "go-concurrency-channels-quiz",
			LessonID:     "go-concurrency-channels",
			Title:        "Channels check",
			PassingScore: 60,
			IsActive:     true,
			Questions: []quiz.Question{
				{
					Text:          "Which keyword waits on several channel operations?",
					Type:          quiz.TypeMultipleChoice,
					Options:       []string{"switch", "select", "range"},
					CorrectAnswer: "select",
					Points:        20,
				},
				{
					Text:          "Sending on a closed channel panics.",
					Type:          quiz.TypeTrueFalse,
					CorrectAnswer: "true",
					Points:        10,
				},
			},
		},
	}
}
