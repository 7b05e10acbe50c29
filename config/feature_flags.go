package config

import (
	"errors"
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Toggles of the engine's side effects. The progress tracker and the reward
// ledger always run, whatever the flags say.
const (
	FeatureAchievements   = "gamification.achievements"    // orchestrator after a transition
	FeatureStreaks        = "gamification.streaks"         // daily streak maintenance
	FeatureQuizPassBonus  = "gamification.quiz_pass_bonus" // first passed attempt per quiz
	FeatureLeaderboard    = "leaderboard.realtime"         // board update on every credit
	FeatureEventForwarder = "events.forward"               // domain events to the broker
)

var (
	ErrFeatureNotFound       = errors.New("feature not found")
	ErrInvalidRolloutPercent = errors.New("rollout percent must be 0-100")
)

// FeatureFlags maps each known flag to a rollout percentage. A learner is
// in the rollout when the hash of (flag, learnerID) falls below it, so the
// same learner keeps the same answer across restarts.
//
// A nil *FeatureFlags has every flag on.
type FeatureFlags struct {
	mu        sync.RWMutex
	rollout   map[string]int
	overrides map[string]map[string]bool // learnerID -> flag -> on
}

// LoadFeatureFlags starts with every flag at 100% and applies
// FEATURE_<NAME>=true|false|<percent> from the environment, where NAME is
// the flag with dots replaced by underscores, e.g. FEATURE_GAMIFICATION_STREAKS.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		rollout:   make(map[string]int),
		overrides: make(map[string]map[string]bool),
	}
	for _, name := range []string{
		FeatureAchievements,
		FeatureStreaks,
		FeatureQuizPassBonus,
		FeatureLeaderboard,
		FeatureEventForwarder,
	} {
		ff.rollout[name] = 100
		if p, ok := parseRollout(os.Getenv(envKey(name))); ok {
			ff.rollout[name] = p
		}
	}
	return ff
}

func envKey(name string) string {
	return "FEATURE_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))
}

func parseRollout(v string) (int, bool) {
	if v == "" {
		return 0, false
	}
	if on, err := strconv.ParseBool(v); err == nil {
		if on {
			return 100, true
		}
		return 0, true
	}
	if p, err := strconv.Atoi(v); err == nil && p >= 0 && p <= 100 {
		return p, true
	}
	return 0, false
}

// Enabled answers for one learner. Per-learner overrides win over rollout.
// Unknown flags are off.
func (ff *FeatureFlags) Enabled(name, learnerID string) bool {
	if ff == nil {
		return true
	}
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if on, ok := ff.overrides[learnerID][name]; ok {
		return on
	}
	p, ok := ff.rollout[name]
	switch {
	case !ok || p <= 0:
		return false
	case p >= 100 || learnerID == "":
		return true
	}

	h := fnv.New32a()
	h.Write([]byte(name))
	h.Write([]byte(learnerID))
	return int(h.Sum32()%100) < p
}

// SetUserOverride pins a flag for one learner, e.g. for support cases.
func (ff *FeatureFlags) SetUserOverride(learnerID, name string, on bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if ff.overrides[learnerID] == nil {
		ff.overrides[learnerID] = make(map[string]bool)
	}
	ff.overrides[learnerID][name] = on
}

func (ff *FeatureFlags) SetRolloutPercent(name string, percent int) error {
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.rollout[name]; !ok {
		return ErrFeatureNotFound
	}
	ff.rollout[name] = percent
	return nil
}

func (ff *FeatureFlags) DisableFeature(name string) error {
	return ff.SetRolloutPercent(name, 0)
}
