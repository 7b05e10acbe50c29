package postgres

import (
	"context"

	"github.com/golearn/learning-hub/internal/domain/achievement"
	"github.com/golearn/learning-hub/internal/domain/learner"
	"github.com/golearn/learning-hub/internal/domain/lesson"
	"github.com/golearn/learning-hub/internal/domain/progress"
	"github.com/golearn/learning-hub/internal/domain/quiz"
)

// Store bundles the repositories over one connection pool.
type Store struct {
	conn *Connection

	learners     *LearnerRepository
	lessons      *LessonRepository
	quizzes      *QuizRepository
	progress     *ProgressRepository
	achievements *AchievementRepository
	ledger       *Ledger
}

// NewStore creates all repositories. perLevel is the level step of the ledger.
func NewStore(conn *Connection, perLevel int) *Store {
	return &Store{
		conn:         conn,
		learners:     NewLearnerRepository(conn),
		lessons:      NewLessonRepository(conn),
		quizzes:      NewQuizRepository(conn),
		progress:     NewProgressRepository(conn),
		achievements: NewAchievementRepository(conn),
		ledger:       NewLedger(conn, perLevel),
	}
}

func (s *Store) Learners() learner.Repository         { return s.learners }
func (s *Store) Lessons() lesson.Repository           { return s.lessons }
func (s *Store) Quizzes() quiz.Repository             { return s.quizzes }
func (s *Store) Progress() progress.Repository        { return s.progress }
func (s *Store) Achievements() achievement.Repository { return s.achievements }
func (s *Store) Stats() achievement.StatsReader       { return s.achievements }
func (s *Store) Ledger() achievement.Ledger           { return s.ledger }
func (s *Store) PointsLog() achievement.HistoryReader { return s.ledger }

// Ping implements the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close() {
	s.conn.Close()
}
