package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultipleChoiceContent_CorrectText(t *testing.T) {
	content := &MultipleChoiceContent{
		Options:      []string{"red", "green", "blue"},
		CorrectIndex: 1,
	}
	assert.Equal(t, "green", content.CorrectText())

	content.CorrectIndex = 5
	assert.Empty(t, content.CorrectText())
}

func TestQuestion_SanitizedContent(t *testing.T) {
	t.Run("multiple choice hides the correct index", func(t *testing.T) {
		raw, err := json.Marshal(MultipleChoiceContent{
			Options:      []string{"a", "b"},
			CorrectIndex: 0,
		})
		require.NoError(t, err)

		q := &Question{Type: MultipleChoice, Content: raw}
		sanitized, err := q.SanitizedContent()
		require.NoError(t, err)

		var out map[string]any
		require.NoError(t, json.Unmarshal(sanitized, &out))
		assert.Contains(t, out, "options")
		assert.NotContains(t, out, "correct_index")
	})

	t.Run("fill blank hides the correct answer", func(t *testing.T) {
		raw, err := json.Marshal(FillBlankContent{CorrectAnswer: "secret"})
		require.NoError(t, err)

		q := &Question{Type: FillBlank, Content: raw}
		sanitized, err := q.SanitizedContent()
		require.NoError(t, err)
		assert.NotContains(t, string(sanitized), "secret")
	})

	t.Run("matching exposes items without the pairing", func(t *testing.T) {
		raw, err := json.Marshal(MatchingContent{
			CorrectPairs: map[string]string{"H2O": "water", "NaCl": "salt"},
		})
		require.NoError(t, err)

		q := &Question{Type: Matching, Content: raw}
		sanitized, err := q.SanitizedContent()
		require.NoError(t, err)

		var out map[string]any
		require.NoError(t, json.Unmarshal(sanitized, &out))
		assert.NotContains(t, out, "correct_pairs")
		assert.Len(t, out["left_items"], 2)
		assert.Len(t, out["right_items"], 2)
	})

	t.Run("empty content stays empty", func(t *testing.T) {
		q := &Question{Type: OpenEnded}
		sanitized, err := q.SanitizedContent()
		require.NoError(t, err)
		assert.Nil(t, sanitized)
	})
}

func TestQuestion_DecodeContent(t *testing.T) {
	raw, err := json.Marshal(TrueFalseContent{CorrectAnswer: "true"})
	require.NoError(t, err)

	q := &Question{Type: TrueFalse, Content: raw}
	decoded, err := q.DecodeContent()
	require.NoError(t, err)

	content, ok := decoded.(*TrueFalseContent)
	require.True(t, ok)
	assert.Equal(t, "true", content.CorrectAnswer)
}

func TestQuestionType_IsValid(t *testing.T) {
	valid := []QuestionType{MultipleChoice, TrueFalse, FillBlank, Matching, OpenEnded}
	for _, qt := range valid {
		assert.True(t, qt.IsValid(), string(qt))
	}
	assert.False(t, QuestionType("essay").IsValid())

	assert.False(t, OpenEnded.IsAutoGradeable())
	assert.True(t, MultipleChoice.IsAutoGradeable())
}
