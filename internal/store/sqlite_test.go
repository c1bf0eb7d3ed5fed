package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/classmate/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "classmate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type seededSubject struct {
	subject  domain.Subject
	topics   []domain.Topic
	bites    [][]domain.Bite
	quiz     domain.Quiz
	question []domain.Question
}

// seedSubject creates a subject with the given bites per topic and a quiz of
// two questions.
func seedSubject(t *testing.T, q Querier, bitesPerTopic ...int) seededSubject {
	t.Helper()
	ctx := context.Background()
	var out seededSubject

	out.subject = domain.Subject{Name: "Go Basics", Description: "intro"}
	require.NoError(t, q.CreateSubject(ctx, &out.subject))

	for i, n := range bitesPerTopic {
		topic := domain.Topic{SubjectID: out.subject.ID, Name: "topic"}
		require.NoError(t, q.CreateTopic(ctx, &topic))
		out.topics = append(out.topics, topic)
		out.bites = append(out.bites, nil)
		for j := 0; j < n; j++ {
			b := domain.Bite{TopicID: topic.ID, Name: "bite", Text: "text"}
			require.NoError(t, q.CreateBite(ctx, &b))
			out.bites[i] = append(out.bites[i], b)
		}
	}

	out.quiz = domain.Quiz{SubjectID: out.subject.ID}
	require.NoError(t, q.CreateQuiz(ctx, &out.quiz))
	for _, text := range []string{"2+2?", "capital of France?"} {
		qu := domain.Question{QuizID: out.quiz.ID, Text: text, Options: []domain.Option{
			{Text: "right", IsCorrect: true},
			{Text: "wrong"},
		}}
		require.NoError(t, q.CreateQuestion(ctx, &qu))
		out.question = append(out.question, qu)
	}
	return out
}

func TestCreateAccountIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, created, err := s.CreateAccount(ctx, "+15550001")
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := s.CreateAccount(ctx, "+15550001")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, a.ID, again.ID)

	_, err = s.GetAccountByAddress(ctx, "+15559999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionStateDefaultsToIdle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, _, err := s.CreateAccount(ctx, "+15550001")
	require.NoError(t, err)

	st, err := s.GetSessionState(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeIdle, st.Mode)
	assert.JSONEq(t, `{}`, string(st.Context))
	assert.Zero(t, st.Version)
}

func TestSaveSessionStateRejectsStaleVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, _, err := s.CreateAccount(ctx, "+15550001")
	require.NoError(t, err)

	first, err := s.GetSessionState(ctx, a.ID)
	require.NoError(t, err)
	second, err := s.GetSessionState(ctx, a.ID)
	require.NoError(t, err)

	first.Mode = domain.ModeInGeneration
	first.Context = json.RawMessage(`{"preferences":"go"}`)
	require.NoError(t, s.SaveSessionState(ctx, first))
	assert.Equal(t, int64(1), first.Version)

	second.Mode = domain.ModeInQuiz
	assert.ErrorIs(t, s.SaveSessionState(ctx, second), ErrStaleSession)

	loaded, err := s.GetSessionState(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeInGeneration, loaded.Mode)
	assert.JSONEq(t, `{"preferences":"go"}`, string(loaded.Context))

	loaded.Reset()
	require.NoError(t, s.SaveSessionState(ctx, loaded))
	assert.Equal(t, int64(2), loaded.Version)
	assert.ErrorIs(t, s.SaveSessionState(ctx, first), ErrStaleSession)
}

func TestCheckpointNeverDowngrades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, _, err := s.CreateAccount(ctx, "+15550001")
	require.NoError(t, err)
	seed := seedSubject(t, s, 2)
	bite := seed.bites[0][0]

	cp, changed, err := s.GetOrCreateCheckpoint(ctx, a.ID, bite.ID, domain.CheckpointProgressing)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.CheckpointProgressing, cp.Status)

	cp, changed, err = s.GetOrCreateCheckpoint(ctx, a.ID, bite.ID, domain.CheckpointCompleted)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.CheckpointCompleted, cp.Status)

	cp, changed, err = s.GetOrCreateCheckpoint(ctx, a.ID, bite.ID, domain.CheckpointProgressing)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, domain.CheckpointCompleted, cp.Status)

	_, changed, err = s.GetOrCreateCheckpoint(ctx, a.ID, bite.ID, domain.CheckpointCompleted)
	require.NoError(t, err)
	assert.False(t, changed)

	done, err := s.IsBiteCompleted(ctx, a.ID, bite.ID)
	require.NoError(t, err)
	assert.True(t, done)

	n, err := s.CountCompleted(ctx, a.ID, seed.topics[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMilestoneCreatedOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, _, err := s.CreateAccount(ctx, "+15550001")
	require.NoError(t, err)
	seed := seedSubject(t, s, 1)

	_, created, err := s.GetOrCreateMilestone(ctx, a.ID, seed.topics[0].ID)
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = s.GetOrCreateMilestone(ctx, a.ID, seed.topics[0].ID)
	require.NoError(t, err)
	assert.False(t, created)

	has, err := s.HasMilestone(ctx, a.ID, seed.topics[0].ID)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestPointsLedger(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, _, err := s.CreateAccount(ctx, "+15550001")
	require.NoError(t, err)

	total, err := s.TotalPoints(ctx, a.ID)
	require.NoError(t, err)
	assert.Zero(t, total)

	for _, p := range []int{5, 0, 10} {
		require.NoError(t, s.AppendPoint(ctx, &domain.PointRecord{AccountID: a.ID, EventType: domain.EventBiteCompleted, Points: p}))
	}
	total, err = s.TotalPoints(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, total)
}

func TestRecordAnswerOncePerAttempt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, _, err := s.CreateAccount(ctx, "+15550001")
	require.NoError(t, err)

	ans := &domain.Answer{AccountID: a.ID, AttemptID: "attempt-1", QuestionID: 1, OptionID: 1, IsCorrect: true}
	inserted, err := s.RecordAnswer(ctx, ans)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := &domain.Answer{AccountID: a.ID, AttemptID: "attempt-1", QuestionID: 1, OptionID: 2}
	inserted, err = s.RecordAnswer(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	other := &domain.Answer{AccountID: a.ID, AttemptID: "attempt-2", QuestionID: 1, OptionID: 1, IsCorrect: true}
	inserted, err = s.RecordAnswer(ctx, other)
	require.NoError(t, err)
	assert.True(t, inserted)

	n, err := s.CountCorrectAnswers(ctx, a.ID, "attempt-1", []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCatalogQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed := seedSubject(t, s, 2, 0, 1)

	subjects, err := s.ListSubjects(ctx)
	require.NoError(t, err)
	require.Len(t, subjects, 1)
	assert.Equal(t, domain.CreatorAdmin, subjects[0].CreatorType)

	_, err = s.GetSubject(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	questions, err := s.QuestionsForSubject(ctx, seed.subject.ID)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "2+2?", questions[0].Text)
	require.Len(t, questions[0].Options, 2)
	assert.True(t, questions[0].Options[0].IsCorrect)

	topics, err := s.BitesForSubject(ctx, seed.subject.ID)
	require.NoError(t, err)
	require.Len(t, topics, 3)
	assert.Len(t, topics[0].Bites, 2)
	assert.Empty(t, topics[1].Bites)
	assert.Len(t, topics[2].Bites, 1)
	assert.Equal(t, seed.bites[0][0].ID, topics[0].Bites[0].ID)

	n, err := s.BiteCount(ctx, seed.topics[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	empty := domain.Subject{Name: "Empty"}
	require.NoError(t, s.CreateSubject(ctx, &empty))
	questions, err = s.QuestionsForSubject(ctx, empty.ID)
	require.NoError(t, err)
	assert.Nil(t, questions)
}

func TestEnrollment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, _, err := s.CreateAccount(ctx, "+15550001")
	require.NoError(t, err)
	seed := seedSubject(t, s, 1)

	created, err := s.Enroll(ctx, a.ID, seed.subject.ID)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = s.Enroll(ctx, a.ID, seed.subject.ID)
	require.NoError(t, err)
	assert.False(t, created)

	ok, err := s.IsEnrolled(ctx, a.ID, seed.subject.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := s.EnrolledSubjects(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Go Basics", list[0].SubjectName)
}

func TestProcessedMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetProcessedReply(ctx, 1, "SM1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SaveProcessedReply(ctx, 1, "SM1", "hello"))
	reply, ok, err := s.GetProcessedReply(ctx, 1, "SM1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello", reply)

	_, ok, err = s.GetProcessedReply(ctx, 2, "SM1")
	require.NoError(t, err)
	assert.False(t, ok, "message ids are scoped to the sending account")

	require.NoError(t, s.SaveProcessedReply(ctx, 2, "SM1", "other"))
	reply, _, err = s.GetProcessedReply(ctx, 2, "SM1")
	require.NoError(t, err)
	assert.Equal(t, "other", reply)
	reply, _, err = s.GetProcessedReply(ctx, 1, "SM1")
	require.NoError(t, err)
	assert.Equal(t, "hello", reply)

	s.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	n, err := s.PruneProcessedMessages(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestMarkGenerationCompletedOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fresh, err := s.MarkGenerationCompleted(ctx, "job-1", 1)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = s.MarkGenerationCompleted(ctx, "job-1", 1)
	require.NoError(t, err)
	assert.False(t, fresh)

	require.NoError(t, s.SaveProcessedReply(ctx, 1, "job-2", "hi"))
	fresh, err = s.MarkGenerationCompleted(ctx, "job-2", 1)
	require.NoError(t, err)
	assert.True(t, fresh, "completions do not share keys with inbound message ids")
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, _, err := s.CreateAccount(ctx, "+15550001")
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.WithinTx(ctx, func(q Querier) error {
		if err := q.AppendPoint(ctx, &domain.PointRecord{AccountID: a.ID, EventType: domain.EventQuizCompleted, Points: 10}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	total, err := s.TotalPoints(ctx, a.ID)
	require.NoError(t, err)
	assert.Zero(t, total)

	err = s.WithinTx(ctx, func(q Querier) error {
		return q.AppendPoint(ctx, &domain.PointRecord{AccountID: a.ID, EventType: domain.EventQuizCompleted, Points: 10})
	})
	require.NoError(t, err)
	total, err = s.TotalPoints(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, total)
}
