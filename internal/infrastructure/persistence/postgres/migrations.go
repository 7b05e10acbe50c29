package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE LEARNERS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create learners table
-- Version: 001

CREATE TABLE IF NOT EXISTS learners (
    id VARCHAR(100) PRIMARY KEY,
    email VARCHAR(255) NOT NULL DEFAULT '',
    full_name VARCHAR(255) NOT NULL DEFAULT '',
    role VARCHAR(20) NOT NULL DEFAULT 'student',
    points INTEGER NOT NULL DEFAULT 0,
    level INTEGER NOT NULL DEFAULT 1,
    streak_days INTEGER NOT NULL DEFAULT 0,
    last_activity_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_role CHECK (role IN ('student', 'teacher', 'admin')),
    CONSTRAINT valid_level CHECK (level >= 1),
    CONSTRAINT valid_streak CHECK (streak_days >= 0)
);

-- Fallback leaderboard reads when Redis is unavailable
CREATE INDEX IF NOT EXISTS idx_learners_points ON learners(points DESC, id);

-- Append-only points ledger, one row per non-zero credit
CREATE TABLE IF NOT EXISTS points_history (
    id BIGSERIAL PRIMARY KEY,
    learner_id VARCHAR(100) NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
    delta INTEGER NOT NULL,
    reason VARCHAR(255) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_points_history_learner ON points_history(learner_id, created_at DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS points_history;
DROP TABLE IF EXISTS learners;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE CATALOG
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create lessons and quizzes
-- Version: 002

CREATE TABLE IF NOT EXISTS lessons (
    id VARCHAR(100) PRIMARY KEY,
    title VARCHAR(255) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    difficulty VARCHAR(20) NOT NULL DEFAULT 'beginner',
    estimated_minutes INTEGER NOT NULL DEFAULT 15,
    points_reward INTEGER NOT NULL DEFAULT 0,
    sort_order INTEGER NOT NULL DEFAULT 0,
    tags TEXT[] NOT NULL DEFAULT '{}',
    is_published BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_difficulty CHECK (difficulty IN ('beginner', 'intermediate', 'advanced')),
    CONSTRAINT non_negative_reward CHECK (points_reward >= 0)
);

CREATE INDEX IF NOT EXISTS idx_lessons_order ON lessons(sort_order) WHERE is_published;

-- Questions are stored as a JSONB array; each element carries id, type,
-- options, correct_answer, explanation and points.
CREATE TABLE IF NOT EXISTS quizzes (
    id VARCHAR(100) PRIMARY KEY,
    lesson_id VARCHAR(100) NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
    title VARCHAR(255) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    questions JSONB NOT NULL DEFAULT '[]'::jsonb,
    passing_score INTEGER NOT NULL DEFAULT 70,
    time_limit_minutes INTEGER,
    max_points INTEGER NOT NULL DEFAULT 0,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_passing_score CHECK (passing_score >= 0 AND passing_score <= 100)
);

CREATE INDEX IF NOT EXISTS idx_quizzes_lesson ON quizzes(lesson_id) WHERE is_active;
`

const migration002Down = `
DROP TABLE IF EXISTS quizzes;
DROP TABLE IF EXISTS lessons;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create lesson progress and quiz attempts
-- Version: 003
-- Lesson and quiz ids are not foreign keys: the catalog may live in MongoDB.

CREATE TABLE IF NOT EXISTS lesson_progress (
    learner_id VARCHAR(100) NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
    lesson_id VARCHAR(100) NOT NULL,
    started_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMP WITH TIME ZONE,
    is_completed BOOLEAN NOT NULL DEFAULT FALSE,
    time_spent_minutes INTEGER NOT NULL DEFAULT 0,
    difficulty VARCHAR(20) NOT NULL DEFAULT '',

    PRIMARY KEY (learner_id, lesson_id)
);

CREATE INDEX IF NOT EXISTS idx_lesson_progress_completed
    ON lesson_progress(learner_id, difficulty) WHERE is_completed;

CREATE TABLE IF NOT EXISTS quiz_attempts (
    id VARCHAR(100) PRIMARY KEY,
    learner_id VARCHAR(100) NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
    quiz_id VARCHAR(100) NOT NULL,
    answers JSONB NOT NULL DEFAULT '{}'::jsonb,
    score INTEGER NOT NULL DEFAULT 0,
    max_score INTEGER NOT NULL DEFAULT 0,
    passed BOOLEAN NOT NULL DEFAULT FALSE,
    started_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMP WITH TIME ZONE,
    is_completed BOOLEAN NOT NULL DEFAULT FALSE,
    time_taken_seconds INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_quiz_attempts_learner ON quiz_attempts(learner_id, started_at DESC);
CREATE INDEX IF NOT EXISTS idx_quiz_attempts_completed
    ON quiz_attempts(learner_id, quiz_id) WHERE is_completed;
`

const migration003Down = `
DROP TABLE IF EXISTS quiz_attempts;
DROP TABLE IF EXISTS lesson_progress;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CREATE ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Migration: Create achievements and reward facts
-- Version: 004
-- The unique keys of user_achievements and quiz_pass_rewards are what makes
-- every award at-most-once.

CREATE TABLE IF NOT EXISTS achievements (
    id VARCHAR(100) PRIMARY KEY,
    title VARCHAR(255) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    icon VARCHAR(50) NOT NULL DEFAULT '',
    badge_color VARCHAR(20) NOT NULL DEFAULT '',
    points_reward INTEGER NOT NULL DEFAULT 0,
    criteria JSONB NOT NULL DEFAULT '{}'::jsonb,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS user_achievements (
    learner_id VARCHAR(100) NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
    achievement_id VARCHAR(100) NOT NULL REFERENCES achievements(id) ON DELETE CASCADE,
    earned_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    progress DOUBLE PRECISION NOT NULL DEFAULT 1.0,

    UNIQUE(learner_id, achievement_id)
);

CREATE INDEX IF NOT EXISTS idx_user_achievements_learner ON user_achievements(learner_id, earned_at DESC);

CREATE TABLE IF NOT EXISTS quiz_pass_rewards (
    learner_id VARCHAR(100) NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
    quiz_id VARCHAR(100) NOT NULL,
    points INTEGER NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(learner_id, quiz_id)
);
`

const migration004Down = `
DROP TABLE IF EXISTS quiz_pass_rewards;
DROP TABLE IF EXISTS user_achievements;
DROP TABLE IF EXISTS achievements;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 005: CREATE LESSON REWARDS
// ══════════════════════════════════════════════════════════════════════════════

const migration005Up = `
-- Migration: Record lesson rewards as facts
-- Version: 005
-- A completed lesson without a row here has an unpaid reward; the next
-- completion call pays it. Completions that predate the table count as paid.

CREATE TABLE IF NOT EXISTS lesson_rewards (
    learner_id VARCHAR(100) NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
    lesson_id VARCHAR(100) NOT NULL,
    points INTEGER NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(learner_id, lesson_id)
);

INSERT INTO lesson_rewards (learner_id, lesson_id, points, created_at)
SELECT learner_id, lesson_id, 0, COALESCE(completed_at, NOW())
FROM lesson_progress
WHERE is_completed
ON CONFLICT (learner_id, lesson_id) DO NOTHING;
`

const migration005Down = `
DROP TABLE IF EXISTS lesson_rewards;
`

// GetMigrations returns all schema migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_learners", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_catalog", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_progress", UpSQL: migration003Up, DownSQL: migration003Down},
		{Version: 4, Name: "create_achievements", UpSQL: migration004Up, DownSQL: migration004Down},
		{Version: 5, Name: "create_lesson_rewards", UpSQL: migration005Up, DownSQL: migration005Down},
	}
}
