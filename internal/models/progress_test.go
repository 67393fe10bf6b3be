package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaRecord_AddCompleted(t *testing.T) {
	record := &QuotaRecord{}

	added, err := record.AddCompleted(10)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = record.AddCompleted(10)
	require.NoError(t, err)
	assert.False(t, added, "re-adding the same quiz must not change the set")

	added, err = record.AddCompleted(11)
	require.NoError(t, err)
	assert.True(t, added)

	ids, err := record.CompletedSet()
	require.NoError(t, err)
	assert.Equal(t, []uint{10, 11}, ids)

	assert.True(t, record.HasCompleted(10))
	assert.False(t, record.HasCompleted(12))
}

func TestMasteryRecord_ApplyAttempt(t *testing.T) {
	record := &MasteryRecord{}

	record.ApplyAttempt(80, 70)
	assert.Equal(t, 1, record.AttemptedCount)
	assert.Equal(t, 1, record.PassedCount)
	assert.InDelta(t, 80.0, record.AverageScore, 0.001)

	record.ApplyAttempt(60, 70)
	assert.Equal(t, 2, record.AttemptedCount)
	assert.Equal(t, 1, record.PassedCount)
	assert.InDelta(t, 70.0, record.AverageScore, 0.001)

	record.ApplyAttempt(100, 70)
	assert.Equal(t, 3, record.AttemptedCount)
	assert.Equal(t, 2, record.PassedCount)
	assert.InDelta(t, 80.0, record.AverageScore, 0.001)
}

func TestMasteryRecord_ApplyAttempt_ThresholdBoundary(t *testing.T) {
	record := &MasteryRecord{}

	// Exactly on the threshold counts as passed
	record.ApplyAttempt(70, 70)
	assert.Equal(t, 1, record.PassedCount)

	record.ApplyAttempt(69.99, 70)
	assert.Equal(t, 1, record.PassedCount)
}

func TestContentType_IsValid(t *testing.T) {
	assert.True(t, ContentNotes.IsValid())
	assert.True(t, ContentVideo.IsValid())
	assert.True(t, ContentFlashcards.IsValid())
	assert.False(t, ContentType("podcast").IsValid())
}
