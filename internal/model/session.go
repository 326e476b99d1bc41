package model

import (
	"fmt"
	"time"
)

// SessionType classifies an interaction interval.
type SessionType string

const (
	SessionConversation SessionType = "conversation"
	SessionTraining     SessionType = "training"
	SessionCalibration  SessionType = "calibration"
	SessionPassive      SessionType = "passive"
)

// ParseSessionType validates a session type name.
func ParseSessionType(s string) (SessionType, error) {
	switch t := SessionType(s); t {
	case SessionConversation, SessionTraining, SessionCalibration, SessionPassive:
		return t, nil
	}
	return "", fmt.Errorf("invalid session type %q (valid: conversation, training, calibration, passive)", s)
}

// SignalType classifies a behavior signal.
type SignalType string

const (
	SignalHeadPose       SignalType = "head_pose"
	SignalExpression     SignalType = "expression"
	SignalVoiceAmplitude SignalType = "voice_amplitude"
	SignalAttention      SignalType = "attention"
	SignalEngagement     SignalType = "engagement"
)

// ParseSignalType validates a signal type name.
func ParseSignalType(s string) (SignalType, error) {
	switch t := SignalType(s); t {
	case SignalHeadPose, SignalExpression, SignalVoiceAmplitude, SignalAttention, SignalEngagement:
		return t, nil
	}
	return "", fmt.Errorf("invalid signal type %q (valid: head_pose, expression, voice_amplitude, attention, engagement)", s)
}

// Session is one bounded interval of interaction.
type Session struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Type      SessionType   `json:"type"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Active reports whether the session has not been ended yet.
func (s Session) Active() bool { return s.EndedAt == nil }

// BehaviorSignal is one timestamped scalar measurement.
// SessionID stays empty until the owning session ends.
type BehaviorSignal struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Type      SignalType     `json:"type"`
	Value     float64        `json:"value"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SignalStatistics summarizes signal values of one type.
type SignalStatistics struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}
