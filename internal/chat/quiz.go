package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ashureev/classmate/internal/domain"
	"github.com/ashureev/classmate/internal/session"
)

const maxQuizOptions = 26

// startQuiz freezes the subject's question batch into a new attempt and
// shows the first question.
func startQuiz(ctx context.Context, t *Turn, subjectID int64) (Result, error) {
	questions, err := t.Q.QuestionsForSubject(ctx, subjectID)
	if err != nil {
		return Result{}, err
	}

	qc := session.QuizContext{SubjectID: subjectID, AttemptID: uuid.NewString()}
	for _, q := range questions {
		if len(q.Options) == 0 || len(q.Options) > maxQuizOptions {
			continue
		}
		qq := session.QuizQuestion{QuestionID: q.ID, QuestionText: q.Text}
		for _, o := range q.Options {
			qq.Options = append(qq.Options, session.QuizOption{OptionID: o.ID, Text: o.Text, IsCorrect: o.IsCorrect})
		}
		qc.Questions = append(qc.Questions, qq)
	}
	if len(qc.Questions) == 0 {
		return t.stay(msgNoQuestions), nil
	}

	return enter(domain.ModeInQuiz, &qc, formatQuestion(&qc.Questions[0], 1, len(qc.Questions), false))
}

type quizProtocol struct{}

func (quizProtocol) handle(ctx context.Context, t *Turn) (Result, error) {
	input := normalize(t.Text)
	if input == "/exit-quiz" {
		return idle(msgQuizExited), nil
	}
	if strings.HasPrefix(input, "/") {
		return t.stay(msgQuizReminder), nil
	}

	qc, err := session.DecodeQuiz(t.State.Context)
	if err != nil {
		return Result{}, err
	}
	current := qc.Current()
	total := len(qc.Questions)

	idx, ok := parseOptionLetter(input, len(current.Options))
	if !ok {
		return t.stay(formatQuestion(current, qc.CurrentQuestionIndex+1, total, true)), nil
	}
	selected := current.Options[idx]

	inserted, err := t.Q.RecordAnswer(ctx, &domain.Answer{
		AccountID:  t.Account.ID,
		AttemptID:  qc.AttemptID,
		QuestionID: current.QuestionID,
		OptionID:   selected.OptionID,
		IsCorrect:  selected.IsCorrect,
	})
	if err != nil {
		return Result{}, err
	}

	feedback := answerFeedback(current, selected)

	pointLine := ""
	if inserted {
		event := domain.EventQuestionAnsweredIncorrectly
		if selected.IsCorrect {
			event = domain.EventQuestionAnsweredCorrectly
		}
		rec, err := t.Points.Award(ctx, t.Account.ID, event)
		if err != nil {
			return Result{}, err
		}
		accountTotal, err := t.Points.Total(ctx, t.Account.ID)
		if err != nil {
			return Result{}, err
		}
		pointLine = fmt.Sprintf("✨ You earned *%d* points for this question. Total: *%d* points.\n\n", rec.Points, accountTotal)
	}

	qc.CurrentQuestionIndex++
	if qc.CurrentQuestionIndex < total {
		answered := qc.CurrentQuestionIndex
		bar, percent := progressBar(answered, total)
		next := qc.Current()

		var b strings.Builder
		fmt.Fprintf(&b, "%s\n\n%s", feedback, pointLine)
		fmt.Fprintf(&b, "🧾 *Progress*: [%s] %d/%d answered (%d%%)\n\n", bar, answered, total, percent)
		fmt.Fprintf(&b, "➡️ *Next Question (%d/%d)*\n\n", answered+1, total)
		fmt.Fprintf(&b, "%s\n\n*Options:*\n%s\n\n", next.QuestionText, formatOptions(next.Options))
		b.WriteString("Reply with the option letter (A, B, ...). To exit, /exit-quiz.")
		return enter(domain.ModeInQuiz, qc, b.String())
	}

	return finishQuiz(ctx, t, qc, feedback+"\n\n"+pointLine)
}

// finishQuiz scores the attempt from the answer ledger, awards the
// completion bonus and returns the account to idle. lead is the answer
// feedback of the final turn.
func finishQuiz(ctx context.Context, t *Turn, qc *session.QuizContext, lead string) (Result, error) {
	ids := distinct(qc.QuestionIDs())
	correct, err := t.Q.CountCorrectAnswers(ctx, t.Account.ID, qc.AttemptID, ids)
	if err != nil {
		return Result{}, err
	}
	total := len(ids)
	percent := 0
	if total > 0 {
		percent = 100 * correct / total
	}

	rec, err := t.Points.Award(ctx, t.Account.ID, domain.EventQuizCompleted)
	if err != nil {
		return Result{}, err
	}
	accountTotal, err := t.Points.Total(ctx, t.Account.ID)
	if err != nil {
		return Result{}, err
	}

	var b strings.Builder
	b.WriteString(lead)
	b.WriteString("🏁 🎉 *Quiz Complete!*\n")
	fmt.Fprintf(&b, "Score: *%d/%d* (%d%%)\n\n", correct, total, percent)
	b.WriteString("Thanks for practicing! Send /practice-subject <subject_id> to try again or /get-subjects to explore other topics. 🎯")
	fmt.Fprintf(&b, "\n\n🏆 You earned *%d* points for completing the quiz! Total: *%d* points.", rec.Points, accountTotal)
	return idle(b.String()), nil
}

func answerFeedback(q *session.QuizQuestion, selected session.QuizOption) string {
	if selected.IsCorrect {
		return "✅ Correct! Great job."
	}
	for i, o := range q.Options {
		if o.IsCorrect {
			return fmt.Sprintf("❌ Not quite.\nCorrect answer: %s. %s", optionLetter(i), o.Text)
		}
	}
	return "❌ Not correct."
}

func distinct(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
