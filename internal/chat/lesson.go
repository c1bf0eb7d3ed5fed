package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/classmate/internal/domain"
	"github.com/ashureev/classmate/internal/session"
)

const (
	defaultBiteName = "Unnamed Bite"
	defaultBiteText = "No content available."
)

// startLesson snapshots the subject's topics and bites and presents the
// first bite the account has not completed.
func startLesson(ctx context.Context, t *Turn, subjectID int64) (Result, error) {
	topics, err := t.Q.BitesForSubject(ctx, subjectID)
	if err != nil {
		return Result{}, err
	}

	lc := &session.LessonContext{SubjectID: subjectID}
	bites := 0
	for _, tb := range topics {
		lt := session.LessonTopic{TopicID: tb.TopicID, Bites: make([]session.LessonBite, 0, len(tb.Bites))}
		for _, b := range tb.Bites {
			lt.Bites = append(lt.Bites, session.LessonBite{BiteID: b.ID, BiteName: b.Name, BiteText: b.Text})
		}
		bites += len(lt.Bites)
		lc.Topics = append(lc.Topics, lt)
	}
	if bites == 0 {
		return t.stay(msgNoLesson), nil
	}
	return presentNext(ctx, t, lc)
}

type lessonProtocol struct{}

func (lessonProtocol) handle(ctx context.Context, t *Turn) (Result, error) {
	switch normalize(t.Text) {
	case "/exit-lesson":
		return idle(msgLessonExited), nil
	case "/next":
		lc, err := session.DecodeLesson(t.State.Context)
		if err != nil {
			return Result{}, err
		}
		return presentNext(ctx, t, lc)
	default:
		return t.stay(msgLessonReminder), nil
	}
}

// presentNext delivers the next incomplete bite, records its checkpoint and
// any milestone it closes, then points the context at the bite after it.
// When nothing is left the account returns to idle.
func presentNext(ctx context.Context, t *Turn, lc *session.LessonContext) (Result, error) {
	topic, bite, err := nextIncomplete(ctx, t, lc)
	if err != nil {
		return Result{}, err
	}
	if bite == nil {
		return idle(msgLessonComplete), nil
	}

	total, err := t.Q.BiteCount(ctx, topic.TopicID)
	if err != nil {
		return Result{}, err
	}
	done, err := t.Q.CountCompleted(ctx, t.Account.ID, topic.TopicID)
	if err != nil {
		return Result{}, err
	}
	bar, percent := progressBar(done, total)

	var b strings.Builder
	fmt.Fprintf(&b, "📚 *Welcome to your lesson for Subject ID %d!*\n", lc.SubjectID)
	fmt.Fprintf(&b, "📝 *Topic %d*\n", topic.TopicID)
	fmt.Fprintf(&b, "✨ *Bite %d - %s*\n\n", bite.BiteID, orDefault(bite.BiteName, defaultBiteName))
	fmt.Fprintf(&b, "🔹 %s\n\n", orDefault(bite.BiteText, defaultBiteText))
	fmt.Fprintf(&b, "📊 *Topic progress*: [%s] %d/%d bites (%d%%)", bar, done, total, percent)

	_, changed, err := t.Q.GetOrCreateCheckpoint(ctx, t.Account.ID, bite.BiteID, domain.CheckpointCompleted)
	if err != nil {
		return Result{}, err
	}
	if changed {
		if _, err := t.Points.Award(ctx, t.Account.ID, domain.EventBiteCompleted); err != nil {
			return Result{}, err
		}
	}

	completed, err := t.Q.CountCompleted(ctx, t.Account.ID, topic.TopicID)
	if err != nil {
		return Result{}, err
	}
	if total > 0 && completed >= total {
		_, created, err := t.Q.GetOrCreateMilestone(ctx, t.Account.ID, topic.TopicID)
		if err != nil {
			return Result{}, err
		}
		if created {
			rec, err := t.Points.Award(ctx, t.Account.ID, domain.EventMilestoneAchieved)
			if err != nil {
				return Result{}, err
			}
			fmt.Fprintf(&b, "\n\n🎯 *Milestone reached!* You finished every bite of this topic. +%d points.", rec.Points)
		}
	}

	nextTopic, nextBite, err := nextIncomplete(ctx, t, lc)
	if err != nil {
		return Result{}, err
	}
	if nextBite == nil {
		b.WriteString("\n\n🎉 " + msgLessonComplete)
		return idle(b.String()), nil
	}

	lc.CurrentTopicID = nextTopic.TopicID
	lc.CurrentBiteID = nextBite.BiteID
	b.WriteString("\n\n👉 Reply /next to continue or /exit-lesson to exit the lesson.")
	return enter(domain.ModeInLesson, lc, b.String())
}

// nextIncomplete scans topics in order and returns the first bite without a
// completed checkpoint in the first topic that has no milestone. Topics with
// no bites are skipped. A nil bite means the subject is complete.
func nextIncomplete(ctx context.Context, t *Turn, lc *session.LessonContext) (*session.LessonTopic, *session.LessonBite, error) {
	for i := range lc.Topics {
		topic := &lc.Topics[i]
		if len(topic.Bites) == 0 {
			continue
		}
		reached, err := t.Q.HasMilestone(ctx, t.Account.ID, topic.TopicID)
		if err != nil {
			return nil, nil, err
		}
		if reached {
			continue
		}
		for j := range topic.Bites {
			done, err := t.Q.IsBiteCompleted(ctx, t.Account.ID, topic.Bites[j].BiteID)
			if err != nil {
				return nil, nil, err
			}
			if !done {
				return topic, &topic.Bites[j], nil
			}
		}
	}
	return nil, nil, nil
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
