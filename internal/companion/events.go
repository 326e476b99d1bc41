package companion

import "fmt"

// Expression is the facial expression shown or detected.
type Expression string

const (
	ExpressionNeutral   Expression = "neutral"
	ExpressionHappy     Expression = "happy"
	ExpressionSad       Expression = "sad"
	ExpressionSurprised Expression = "surprised"
	ExpressionThinking  Expression = "thinking"
	ExpressionSpeaking  Expression = "speaking"
	ExpressionListening Expression = "listening"
)

var expressionValues = map[Expression]float64{
	ExpressionNeutral:   0.5,
	ExpressionHappy:     1.0,
	ExpressionSad:       0.2,
	ExpressionSurprised: 0.9,
	ExpressionThinking:  0.6,
	ExpressionSpeaking:  0.7,
	ExpressionListening: 0.6,
}

// Value is the scalar recorded for an expression signal.
func (e Expression) Value() float64 {
	return expressionValues[e]
}

// ParseExpression validates an expression name.
func ParseExpression(s string) (Expression, error) {
	e := Expression(s)
	if _, ok := expressionValues[e]; !ok {
		return "", fmt.Errorf("invalid expression %q", s)
	}
	return e, nil
}

// Event is something a face, audio or voice source observed.
type Event interface {
	Kind() string
}

// ExpressionChanged reports a newly detected facial expression.
type ExpressionChanged struct{ Expression Expression }

// SpeechDetected reports that the user started speaking.
type SpeechDetected struct{}

// SilenceDetected reports that the user stopped speaking.
type SilenceDetected struct{}

// Amplitude is one voice amplitude sample.
type Amplitude struct{ Value float64 }

// HeadPose is one head pose sample.
type HeadPose struct{ Value float64 }

// Attention is one attention estimate.
type Attention struct{ Value float64 }

// Engagement is one engagement estimate.
type Engagement struct{ Value float64 }

// UtteranceFinished carries a transcribed user utterance.
type UtteranceFinished struct{ Text string }

// Speak asks the companion to say something.
type Speak struct{ Text string }

// SpeechFinished reports that the speaker finished playing the last reply.
type SpeechFinished struct{}

func (ExpressionChanged) Kind() string { return "expression_changed" }
func (SpeechDetected) Kind() string    { return "speech_detected" }
func (SilenceDetected) Kind() string   { return "silence_detected" }
func (Amplitude) Kind() string         { return "amplitude" }
func (HeadPose) Kind() string          { return "head_pose" }
func (Attention) Kind() string         { return "attention" }
func (Engagement) Kind() string        { return "engagement" }
func (UtteranceFinished) Kind() string { return "utterance_finished" }
func (Speak) Kind() string             { return "speak" }
func (SpeechFinished) Kind() string    { return "speech_finished" }
