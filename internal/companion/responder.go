package companion

import (
	"context"
	"strings"
)

// Responder produces a reply to a user utterance given recalled context.
type Responder interface {
	Respond(ctx context.Context, input, recalled string) (string, error)
}

// Speaker starts saying text. Completion is reported with a SpeechFinished event.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, input, recalled string) (string, error)

func (f ResponderFunc) Respond(ctx context.Context, input, recalled string) (string, error) {
	return f(ctx, input, recalled)
}

// SpeakerFunc adapts a function to Speaker.
type SpeakerFunc func(ctx context.Context, text string) error

func (f SpeakerFunc) Speak(ctx context.Context, text string) error { return f(ctx, text) }

// RuleResponder answers greetings and otherwise encourages the user to continue.
type RuleResponder struct{}

func (RuleResponder) Respond(_ context.Context, input, _ string) (string, error) {
	lower := strings.ToLower(input)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z') && r != '\''
	})
	for _, w := range words {
		if w == "hello" || w == "hi" || w == "hey" {
			return "Hello! How can I help?", nil
		}
	}
	if strings.Contains(lower, "how are you") {
		return "I'm great! And you?", nil
	}
	return "I see. Tell me more.", nil
}
