package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptStartsWithSystemMessage(t *testing.T) {
	t.Parallel()

	transcript := NewTranscript("be helpful")
	messages := transcript.Snapshot()
	require.Len(t, messages, 1)
	assert.Equal(t, RoleSystem, messages[0].Role)
	assert.Equal(t, "be helpful", messages[0].Content)
	assert.False(t, messages[0].Timestamp.IsZero())
}

func TestTranscriptSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	transcript := NewTranscript("sys")
	transcript.Append(ChatMessage{Role: RoleUser, Content: "hi"})
	snapshot := transcript.Snapshot()
	snapshot[1].Content = "mutated"

	assert.Equal(t, "hi", transcript.Snapshot()[1].Content)
	assert.Equal(t, 2, transcript.Len())
}

func TestTranscriptKeepsOnePendingHint(t *testing.T) {
	t.Parallel()

	transcript := NewTranscript("sys")
	older := NewHintBlock("older")
	newer := NewHintBlock("newer")

	require.True(t, transcript.AppendHint(older))
	require.False(t, transcript.AppendHint(older), "an appended hint is not repeated")
	assert.Same(t, older, transcript.PendingHint())

	require.True(t, transcript.AppendHint(newer))
	assert.True(t, older.Consumed(), "a newer hint retires the older one")
	assert.Same(t, newer, transcript.PendingHint())

	transcript.ConsumeHint()
	assert.True(t, newer.Consumed())
	assert.Nil(t, transcript.PendingHint())
	assert.False(t, transcript.AppendHint(newer))
	assert.Equal(t, 3, transcript.Len())
}

func TestHintBlockNilAndEmpty(t *testing.T) {
	t.Parallel()

	var missing *HintBlock
	assert.True(t, missing.Consumed())
	assert.Nil(t, missing.Messages())

	transcript := NewTranscript("sys")
	assert.False(t, transcript.AppendHint(nil))
	assert.False(t, transcript.AppendHint(NewHintBlock()))
	assert.Equal(t, 1, transcript.Len())
}
