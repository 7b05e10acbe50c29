package shared

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoints_Level(t *testing.T) {
	assert.Equal(t, Level(1), Points(0).Level(500))
	assert.Equal(t, Level(1), Points(499).Level(500))
	assert.Equal(t, Level(2), Points(500).Level(500))
	assert.Equal(t, Level(3), Points(1200).Level(500))
	assert.Equal(t, Level(2), Points(500).Level(0)) // default step
}

func TestParseDifficulty(t *testing.T) {
	assert.Equal(t, DifficultyAdvanced, ParseDifficulty(" Advanced "))
	assert.Equal(t, DifficultyBeginner, ParseDifficulty("nightmare"))
}

func TestDomainError_Is(t *testing.T) {
	err := WrapError("progress", "SubmitQuizAttempt", ErrConflict, "already submitted", errors.New("boom"))

	assert.True(t, IsConflict(err))
	assert.False(t, IsNotFound(err))
	assert.True(t, IsNotFound(ErrQuizNotFound))
	assert.True(t, IsDegenerate(ErrDegenerateQuiz))
	assert.True(t, IsStorageConflict(ErrAlreadyEarned))
	assert.Contains(t, err.Error(), "progress.SubmitQuizAttempt")
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("first_lesson"))
	assert.True(t, ValidID("0b8a5c1e-9f1d-4c59-8a4f-2b7b1c0d9e11"))
	assert.False(t, ValidID(""))
	assert.False(t, ValidID("has space"))
}
