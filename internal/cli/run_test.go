package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/companion-memory/internal/companion"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want companion.Event
	}{
		{"I had a long day", companion.UtteranceFinished{Text: "I had a long day"}},
		{"  /speech ", companion.SpeechDetected{}},
		{"/silence", companion.SilenceDetected{}},
		{"/say good night", companion.Speak{Text: "good night"}},
		{"/expr happy", companion.ExpressionChanged{Expression: companion.ExpressionHappy}},
		{"/amp 0.42", companion.Amplitude{Value: 0.42}},
		{"/head -0.1", companion.HeadPose{Value: -0.1}},
		{"/attention 1", companion.Attention{Value: 1}},
		{"/engagement 0.3", companion.Engagement{Value: 0.3}},
		{"", nil},
		{"/stats", nil},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseLine(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLineErrors(t *testing.T) {
	for _, line := range []string{"/expr smug", "/amp loud", "/say", "/dance"} {
		_, err := parseLine(line)
		assert.Error(t, err, line)
	}

	_, err := parseLine("/quit")
	assert.ErrorIs(t, err, errQuit)
}

func TestSplitTags(t *testing.T) {
	assert.Equal(t, []string{"speech", "user"}, splitTags(" speech, ,user,"))
	assert.Nil(t, splitTags(""))
}
