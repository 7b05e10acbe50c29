package config

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("APP_ENV", "test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, CatalogPostgres, cfg.Catalog.Backend)
	assert.Equal(t, 500, cfg.Gamification.PointsPerLevel)
	assert.Equal(t, 0, cfg.Gamification.QuizPassPoints)
	assert.Equal(t, "learning-events", cfg.Messaging.Exchange)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	assert.True(t, cfg.Features.Enabled(FeatureAchievements, ""))
}

func TestLoad_ValidationErrors(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CATALOG_BACKEND", "sqlite")
	t.Setenv("GAMIFICATION_POINTS_PER_LEVEL", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
	assert.Contains(t, err.Error(), "CATALOG_BACKEND")
	assert.Contains(t, err.Error(), "GAMIFICATION_POINTS_PER_LEVEL")
}

func TestDatabaseURLFromParts(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "hub")
	t.Setenv("DB_PASSWORD", "pw")

	env := &envReader{}
	cfg := loadDatabaseConfig(env)
	assert.Empty(t, env.problems)
	assert.Equal(t, "postgres://hub:pw@db:5432/learning_hub?sslmode=disable", cfg.URL)
}

func TestLoad_MalformedValuesAreReported(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("APP_ENV", "test")
	t.Setenv("HTTP_PORT", "eighty")
	t.Setenv("CATALOG_CACHE_TTL", "5 minutes")
	t.Setenv("AUTH_DISABLED", "maybe")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `HTTP_PORT="eighty" is not a valid integer`)
	assert.Contains(t, err.Error(), `CATALOG_CACHE_TTL="5 minutes" is not a valid duration`)
	assert.Contains(t, err.Error(), `AUTH_DISABLED="maybe" is not a valid boolean`)
}

func TestEnvReader_List(t *testing.T) {
	t.Setenv("HTTP_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	env := &envReader{}
	assert.Equal(t, []string{"https://a.example", "https://b.example"},
		env.list("HTTP_ALLOWED_ORIGINS", nil))
	assert.Equal(t, []string{"*"}, env.list("UNSET_LIST_FOR_TEST", []string{"*"}))
}

func TestFeatureFlags_EnvAndRollout(t *testing.T) {
	t.Setenv("FEATURE_GAMIFICATION_STREAKS", "false")
	t.Setenv("FEATURE_LEADERBOARD_REALTIME", "0")

	ff := LoadFeatureFlags()
	assert.False(t, ff.Enabled(FeatureStreaks, "learner-1"))
	assert.False(t, ff.Enabled(FeatureLeaderboard, "learner-1"))
	assert.True(t, ff.Enabled(FeatureAchievements, "learner-1"))

	ff.SetUserOverride("learner-1", FeatureStreaks, true)
	assert.True(t, ff.Enabled(FeatureStreaks, "learner-1"))
	assert.False(t, ff.Enabled(FeatureStreaks, "learner-2"))

	// a half rollout is stable per learner and splits a large population
	require.NoError(t, ff.SetRolloutPercent(FeatureQuizPassBonus, 50))
	on := 0
	for i := 0; i < 1000; i++ {
		id := "learner-" + strconv.Itoa(i)
		first := ff.Enabled(FeatureQuizPassBonus, id)
		assert.Equal(t, first, ff.Enabled(FeatureQuizPassBonus, id))
		if first {
			on++
		}
	}
	assert.InDelta(t, 500, on, 100)

	assert.False(t, ff.Enabled("unknown.flag", "learner-1"))
	assert.ErrorIs(t, ff.SetRolloutPercent("nope", 10), ErrFeatureNotFound)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureStreaks, 101), ErrInvalidRolloutPercent)

	var nilFlags *FeatureFlags
	assert.True(t, nilFlags.Enabled(FeatureStreaks, "anyone"))
}
