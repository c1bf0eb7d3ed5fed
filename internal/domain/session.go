package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// Mode names the protocol that owns an account's next turn.
type Mode string

const (
	ModeIdle         Mode = "idle"
	ModeInQuiz       Mode = "in_quiz"
	ModeInLesson     Mode = "in_lesson"
	ModeInGeneration Mode = "in_generation"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeIdle, ModeInQuiz, ModeInLesson, ModeInGeneration:
		return true
	default:
		return false
	}
}

// EmptyContext is the context stored alongside ModeIdle.
var EmptyContext = json.RawMessage(`{}`)

// SessionState is the persisted per-account position in a conversation.
// Version is zero until the row is first written and increments on every
// write; writers must present the version they loaded.
type SessionState struct {
	AccountID int64
	Mode      Mode
	Context   json.RawMessage
	Version   int64
	UpdatedAt time.Time
}

// NewIdleState returns the default state for an account with no stored row.
func NewIdleState(accountID int64) *SessionState {
	return &SessionState{
		AccountID: accountID,
		Mode:      ModeIdle,
		Context:   EmptyContext,
	}
}

// Reset returns the state to idle with an empty context.
func (s *SessionState) Reset() {
	s.Mode = ModeIdle
	s.Context = EmptyContext
}

// Equal reports whether two states carry the same mode and context bytes.
func (s *SessionState) Equal(other *SessionState) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.Mode == other.Mode && bytes.Equal(compact(s.Context), compact(other.Context))
}

func compact(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return EmptyContext
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
