package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ashureev/classmate/internal/domain"
	"github.com/ashureev/classmate/internal/generation"
	"github.com/ashureev/classmate/internal/session"
	"github.com/ashureev/classmate/internal/store"
)

type idleHandler func(ctx context.Context, d *Dispatcher, t *Turn, cmd Command) (Result, error)

var idleHandlers = map[CommandKind]idleHandler{
	CmdHelp:                runHelp,
	CmdCreateAccount:       runCreateAccount,
	CmdGetSubjects:         runGetSubjects,
	CmdGetEnrolledSubjects: runGetEnrolledSubjects,
	CmdEnrollSubject:       runEnrollSubject,
	CmdPracticeSubject:     runPracticeSubject,
	CmdStartLesson:         runStartLesson,
	CmdGenerateCourse:      runGenerateCourse,
	CmdPoints:              runPoints,
}

type idleProtocol struct {
	d *Dispatcher
}

func (p idleProtocol) handle(ctx context.Context, t *Turn) (Result, error) {
	cmd, err := ParseCommand(t.Text)
	var argErr *ArgumentError
	switch {
	case errors.Is(err, ErrUnknownCommand):
		return t.stay(msgUnknownCommand), nil
	case errors.As(err, &argErr):
		return t.stay(argErr.Message), nil
	case err != nil:
		return Result{}, err
	}

	run, ok := idleHandlers[cmd.Kind]
	if !ok {
		return t.stay(msgUnknownCommand), nil
	}
	return run(ctx, p.d, t, cmd)
}

func runHelp(_ context.Context, _ *Dispatcher, t *Turn, _ Command) (Result, error) {
	return t.stay(helpText), nil
}

func runCreateAccount(_ context.Context, _ *Dispatcher, t *Turn, _ Command) (Result, error) {
	return t.stay(fmt.Sprintf("%s: Account already exists.", t.Account.Address)), nil
}

func runGetSubjects(ctx context.Context, _ *Dispatcher, t *Turn, _ Command) (Result, error) {
	subjects, err := t.Q.ListSubjects(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(subjects) == 0 {
		return t.stay("No subjects available at the moment."), nil
	}
	return t.stay(formatSubjects(subjects)), nil
}

func runGetEnrolledSubjects(ctx context.Context, _ *Dispatcher, t *Turn, _ Command) (Result, error) {
	enrollments, err := t.Q.EnrolledSubjects(ctx, t.Account.ID)
	if err != nil {
		return Result{}, err
	}
	if len(enrollments) == 0 {
		return t.stay("You are not enrolled in any subjects."), nil
	}
	return t.stay(formatEnrollments(enrollments)), nil
}

func runEnrollSubject(ctx context.Context, _ *Dispatcher, t *Turn, cmd Command) (Result, error) {
	subject, err := t.Q.GetSubject(ctx, cmd.SubjectID)
	if errors.Is(err, store.ErrNotFound) {
		return t.stay(msgSubjectNotFound), nil
	}
	if err != nil {
		return Result{}, err
	}

	created, err := t.Q.Enroll(ctx, t.Account.ID, subject.ID)
	if err != nil {
		return Result{}, err
	}
	if !created {
		return t.stay(fmt.Sprintf("You are already enrolled in subject ID: %d - %s", subject.ID, subject.Name)), nil
	}
	return t.stay(fmt.Sprintf("Successfully enrolled in subject ID: %d - %s", subject.ID, subject.Name)), nil
}

func runPracticeSubject(ctx context.Context, _ *Dispatcher, t *Turn, cmd Command) (Result, error) {
	if _, err := t.Q.GetSubject(ctx, cmd.SubjectID); errors.Is(err, store.ErrNotFound) {
		return t.stay(msgSubjectNotFound), nil
	} else if err != nil {
		return Result{}, err
	}
	return startQuiz(ctx, t, cmd.SubjectID)
}

func runStartLesson(ctx context.Context, _ *Dispatcher, t *Turn, cmd Command) (Result, error) {
	if _, err := t.Q.GetSubject(ctx, cmd.SubjectID); errors.Is(err, store.ErrNotFound) {
		return t.stay(msgSubjectNotFound), nil
	} else if err != nil {
		return Result{}, err
	}

	enrolled, err := t.Q.IsEnrolled(ctx, t.Account.ID, cmd.SubjectID)
	if err != nil {
		return Result{}, err
	}
	if !enrolled {
		return t.stay(fmt.Sprintf("You are not enrolled in this subject. Send /enroll-subject %d first.", cmd.SubjectID)), nil
	}
	return startLesson(ctx, t, cmd.SubjectID)
}

func runGenerateCourse(_ context.Context, d *Dispatcher, t *Turn, cmd Command) (Result, error) {
	if d.generator == nil {
		return t.stay("Course generation is not available right now. Please try again later."), nil
	}

	now := d.now()
	job := generation.Job{
		ID:          uuid.NewString(),
		AccountID:   t.Account.ID,
		Address:     t.Account.Address,
		Preferences: cmd.Preferences,
		SubmittedAt: now,
	}
	res, err := enter(domain.ModeInGeneration, &session.GenerationContext{
		Preferences: cmd.Preferences,
		JobID:       job.ID,
		StartedAt:   now,
	}, generationAck(cmd.Preferences, d.estimate))
	if err != nil {
		return Result{}, err
	}
	t.launch = &job
	return res, nil
}

func runPoints(ctx context.Context, _ *Dispatcher, t *Turn, _ Command) (Result, error) {
	total, err := t.Points.Total(ctx, t.Account.ID)
	if err != nil {
		return Result{}, err
	}
	return t.stay(fmt.Sprintf("🏆 You have *%d* points. Keep learning!", total)), nil
}
