// Package chat routes inbound messages to the protocol that owns the
// sender's session and persists the outcome before replying.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ashureev/classmate/internal/domain"
	"github.com/ashureev/classmate/internal/generation"
	"github.com/ashureev/classmate/internal/locker"
	"github.com/ashureev/classmate/internal/messaging"
	"github.com/ashureev/classmate/internal/points"
	"github.com/ashureev/classmate/internal/session"
	"github.com/ashureev/classmate/internal/store"
)

// Inbound is one message from a known account.
type Inbound struct {
	AccountID int64
	Text      string
	// MessageID is the transport's id for the message. When set, a
	// redelivery of the same id replays the stored reply.
	MessageID string
}

// Recorder receives every completed turn.
type Recorder interface {
	Record(accountID int64, inbound, reply string)
}

// Config holds the collaborators of a Dispatcher. Zero values fall back to
// an in-process locker, a logging sender and no generation.
type Config struct {
	Locker             locker.Locker
	Generator          generation.Submitter
	Sender             messaging.Sender
	Recorder           Recorder
	GenerationEstimate string
	MaxAttempts        int
	Now                func() time.Time
}

// Dispatcher is the single entry point for inbound chat turns.
type Dispatcher struct {
	repo      store.Repository
	locker    locker.Locker
	generator generation.Submitter
	sender    messaging.Sender
	recorder  Recorder
	estimate  string
	attempts  int
	now       func() time.Time

	protocols map[domain.Mode]protocol
}

// NewDispatcher creates a dispatcher over repo.
func NewDispatcher(repo store.Repository, cfg Config) *Dispatcher {
	d := &Dispatcher{
		repo:      repo,
		locker:    cfg.Locker,
		generator: cfg.Generator,
		sender:    cfg.Sender,
		recorder:  cfg.Recorder,
		estimate:  cfg.GenerationEstimate,
		attempts:  cfg.MaxAttempts,
		now:       cfg.Now,
	}
	if d.locker == nil {
		d.locker = locker.NewLocal()
	}
	if d.sender == nil {
		d.sender = messaging.NewLogSender(nil)
	}
	if d.estimate == "" {
		d.estimate = "2-3 minutes"
	}
	if d.attempts <= 0 {
		d.attempts = 3
	}
	if d.now == nil {
		d.now = time.Now
	}
	d.protocols = map[domain.Mode]protocol{
		domain.ModeIdle:         idleProtocol{d: d},
		domain.ModeInQuiz:       quizProtocol{},
		domain.ModeInLesson:     lessonProtocol{},
		domain.ModeInGeneration: generationProtocol{estimate: d.estimate},
	}
	return d
}

// Handle processes one message for an account and returns the reply.
func (d *Dispatcher) Handle(ctx context.Context, accountID int64, text string) (string, error) {
	return d.HandleMessage(ctx, Inbound{AccountID: accountID, Text: text})
}

// HandleMessage processes one message. The new session state, progress and
// points commit before the reply is returned; on error there is no reply.
func (d *Dispatcher) HandleMessage(ctx context.Context, in Inbound) (string, error) {
	var (
		reply    string
		launch   *generation.Job
		replayed bool
	)
	err := d.withAccountTx(ctx, in.AccountID, func(q store.Querier) error {
		reply, launch, replayed = "", nil, false

		if in.MessageID != "" {
			stored, ok, err := q.GetProcessedReply(ctx, in.AccountID, in.MessageID)
			if err != nil {
				return err
			}
			if ok {
				reply, replayed = stored, true
				return nil
			}
		}

		acct, err := q.GetAccount(ctx, in.AccountID)
		if err != nil {
			return fmt.Errorf("load account %d: %w", in.AccountID, err)
		}
		st, err := q.GetSessionState(ctx, in.AccountID)
		if err != nil {
			return err
		}

		t := &Turn{
			Account: *acct,
			State:   st,
			Text:    in.Text,
			Q:       q,
			Points:  points.NewKeeper(q),
		}
		res, err := d.route(ctx, t)
		if err != nil {
			return err
		}

		next := &domain.SessionState{
			AccountID: st.AccountID,
			Mode:      res.Mode,
			Context:   res.Context,
			Version:   st.Version,
		}
		if !st.Equal(next) {
			if err := q.SaveSessionState(ctx, next); err != nil {
				return err
			}
		}
		if in.MessageID != "" {
			if err := q.SaveProcessedReply(ctx, in.AccountID, in.MessageID, res.Reply); err != nil {
				return err
			}
		}

		reply, launch = res.Reply, t.launch
		return nil
	})
	if err != nil {
		slog.Error("Turn failed", "account_id", in.AccountID, "error", err)
		return "", err
	}

	if replayed {
		slog.Info("Replayed reply for redelivered message", "account_id", in.AccountID, "message_id", in.MessageID)
	}
	if launch != nil {
		reply = d.submit(ctx, *launch, reply)
	}
	if d.recorder != nil {
		d.recorder.Record(in.AccountID, in.Text, reply)
	}
	return reply, nil
}

// HandleUnknownSender answers a message from an address with no account.
// Only /create-account is acted upon.
func (d *Dispatcher) HandleUnknownSender(ctx context.Context, address, text string) (string, error) {
	cmd, err := ParseCommand(text)
	if err != nil || cmd.Kind != CmdCreateAccount {
		return msgWelcome, nil
	}

	acct, created, err := d.repo.CreateAccount(ctx, address)
	if err != nil {
		return "", fmt.Errorf("create account: %w", err)
	}
	if !created {
		return fmt.Sprintf("%s: Account already exists.", acct.Address), nil
	}
	slog.Info("Account created", "account_id", acct.ID)
	return fmt.Sprintf("%s: Account created successfully. Type /help to get started.", acct.Address), nil
}

// OverrideState replaces an account's session state. The context must be
// valid for mode; an idle context is always stored as {}.
func (d *Dispatcher) OverrideState(ctx context.Context, accountID int64, mode domain.Mode, raw []byte) error {
	if mode == domain.ModeIdle {
		raw = domain.EmptyContext
	}
	if err := session.Validate(mode, raw); err != nil {
		return err
	}

	return d.withAccountTx(ctx, accountID, func(q store.Querier) error {
		if _, err := q.GetAccount(ctx, accountID); err != nil {
			return err
		}
		st, err := q.GetSessionState(ctx, accountID)
		if err != nil {
			return err
		}
		next := &domain.SessionState{AccountID: accountID, Mode: mode, Context: raw, Version: st.Version}
		if st.Equal(next) {
			return nil
		}
		slog.Info("Session state overridden", "account_id", accountID, "from", st.Mode, "to", mode)
		return q.SaveSessionState(ctx, next)
	})
}

// CompleteGeneration ends a generation wait and notifies the account.
// A job id is completed at most once; without a job id the account must
// still be waiting. The bool reports whether a notification was sent.
func (d *Dispatcher) CompleteGeneration(ctx context.Context, accountID int64, jobID, message string) (bool, error) {
	var (
		address string
		notify  bool
	)
	err := d.withAccountTx(ctx, accountID, func(q store.Querier) error {
		notify = false
		acct, err := q.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		address = acct.Address

		if jobID != "" {
			fresh, err := q.MarkGenerationCompleted(ctx, jobID, accountID)
			if err != nil || !fresh {
				return err
			}
		}

		st, err := q.GetSessionState(ctx, accountID)
		if err != nil {
			return err
		}
		waiting := false
		if st.Mode == domain.ModeInGeneration {
			gc, err := session.DecodeGeneration(st.Context)
			waiting = err != nil || jobID == "" || gc.JobID == "" || gc.JobID == jobID
		}
		if jobID == "" && !waiting {
			return nil
		}
		if waiting {
			st.Reset()
			if err := q.SaveSessionState(ctx, st); err != nil {
				return err
			}
		}
		notify = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if !notify {
		slog.Info("Generation completion ignored", "account_id", accountID, "job_id", jobID)
		return false, nil
	}

	slog.Info("Generation completed", "account_id", accountID, "job_id", jobID)
	if message == "" {
		return true, nil
	}
	if err := d.sender.Send(ctx, address, message); err != nil {
		return true, fmt.Errorf("notify account %d: %w", accountID, err)
	}
	return true, nil
}

// FailGeneration returns an account whose job could not be launched to
// idle and tells the user. It matches generation.FailureFunc.
func (d *Dispatcher) FailGeneration(ctx context.Context, job generation.Job, cause error) {
	reset, err := d.abortGeneration(ctx, job.AccountID, job.ID)
	if err != nil {
		slog.Error("Failed to reset account after generation failure", "account_id", job.AccountID, "job_id", job.ID, "error", err)
		return
	}
	if !reset {
		return
	}
	slog.Warn("Generation job failed, account reset to idle", "account_id", job.AccountID, "job_id", job.ID, "cause", cause)
	if err := d.sender.Send(ctx, job.Address, msgGenerationFailed); err != nil {
		slog.Warn("Failed to notify account of generation failure", "account_id", job.AccountID, "error", err)
	}
}

func (d *Dispatcher) route(ctx context.Context, t *Turn) (Result, error) {
	if err := session.Validate(t.State.Mode, t.State.Context); err != nil {
		slog.Warn("Resetting corrupt session", "account_id", t.Account.ID, "mode", t.State.Mode, "error", err)
		return idle(msgSessionReset), nil
	}
	p, ok := d.protocols[t.State.Mode]
	if !ok {
		return idle(msgSessionReset), nil
	}
	return p.handle(ctx, t)
}

// submit hands a job to the runner after its turn committed. A rejected
// job rolls the account back to idle and replaces the reply.
func (d *Dispatcher) submit(ctx context.Context, job generation.Job, reply string) string {
	if _, err := d.generator.Submit(job); err != nil {
		slog.Warn("Generation submit failed", "account_id", job.AccountID, "job_id", job.ID, "error", err)
		if _, abortErr := d.abortGeneration(ctx, job.AccountID, job.ID); abortErr != nil {
			slog.Error("Failed to reset account after generation submit failure", "account_id", job.AccountID, "error", abortErr)
		}
		return msgGenerationFailed
	}
	return reply
}

// abortGeneration resets the account if it is still waiting on jobID.
func (d *Dispatcher) abortGeneration(ctx context.Context, accountID int64, jobID string) (bool, error) {
	var reset bool
	err := d.withAccountTx(ctx, accountID, func(q store.Querier) error {
		reset = false
		st, err := q.GetSessionState(ctx, accountID)
		if err != nil {
			return err
		}
		if st.Mode != domain.ModeInGeneration {
			return nil
		}
		gc, err := session.DecodeGeneration(st.Context)
		if err == nil && gc.JobID != jobID {
			return nil
		}
		st.Reset()
		reset = true
		return q.SaveSessionState(ctx, st)
	})
	return reset, err
}

// withAccountTx runs fn in a transaction while holding the account's lock,
// rerunning it on a fresh load when a stale session write is detected.
func (d *Dispatcher) withAccountTx(ctx context.Context, accountID int64, fn func(q store.Querier) error) error {
	release, err := d.locker.Acquire(ctx, lockKey(accountID))
	if err != nil {
		return fmt.Errorf("lock account %d: %w", accountID, err)
	}
	defer release()

	for attempt := 1; ; attempt++ {
		err = d.repo.WithinTx(ctx, fn)
		if !errors.Is(err, store.ErrStaleSession) || attempt >= d.attempts {
			return err
		}
		slog.Warn("Stale session state, retrying turn", "account_id", accountID, "attempt", attempt)
	}
}

func lockKey(accountID int64) string {
	return "account:" + strconv.FormatInt(accountID, 10)
}
