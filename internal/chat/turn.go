package chat

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ashureev/classmate/internal/domain"
	"github.com/ashureev/classmate/internal/generation"
	"github.com/ashureev/classmate/internal/points"
	"github.com/ashureev/classmate/internal/session"
	"github.com/ashureev/classmate/internal/store"
)

// Turn is one inbound message being processed inside the account's
// transaction.
type Turn struct {
	Account domain.Account
	State   *domain.SessionState
	Text    string

	Q      store.Querier
	Points *points.Keeper

	launch *generation.Job
}

// Result is what a protocol decides for a turn: the reply and the mode and
// context the account moves to.
type Result struct {
	Reply   string
	Mode    domain.Mode
	Context json.RawMessage
}

// protocol handles the turns of one session mode.
type protocol interface {
	handle(ctx context.Context, t *Turn) (Result, error)
}

// stay keeps the loaded mode and context.
func (t *Turn) stay(reply string) Result {
	return Result{Reply: reply, Mode: t.State.Mode, Context: t.State.Context}
}

// idle resets the account to idle with an empty context.
func idle(reply string) Result {
	return Result{Reply: reply, Mode: domain.ModeIdle, Context: domain.EmptyContext}
}

// enter moves the account into mode with the encoded context.
func enter(mode domain.Mode, c any, reply string) (Result, error) {
	raw, err := session.Encode(c)
	if err != nil {
		return Result{}, err
	}
	return Result{Reply: reply, Mode: mode, Context: raw}, nil
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
