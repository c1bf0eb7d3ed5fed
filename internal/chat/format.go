package chat

import (
	"fmt"
	"strings"

	"github.com/ashureev/classmate/internal/domain"
	"github.com/ashureev/classmate/internal/session"
)

const progressBarLength = 10

// progressBar renders done/total as ten star glyphs and an integer
// percentage. A zero total renders an empty bar at 0%.
func progressBar(done, total int) (string, int) {
	filled, percent := 0, 0
	if total > 0 {
		filled = progressBarLength * done / total
		percent = 100 * done / total
	}
	if filled > progressBarLength {
		filled = progressBarLength
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("★", filled) + strings.Repeat("☆", progressBarLength-filled), percent
}

// optionLetter maps an option index to its letter.
func optionLetter(i int) string {
	return string(rune('A' + i))
}

// parseOptionLetter returns the option index for a single letter within
// A..A+n-1, case-insensitively.
func parseOptionLetter(input string, n int) (int, bool) {
	s := strings.ToUpper(strings.TrimSpace(input))
	if len(s) != 1 {
		return 0, false
	}
	i := int(s[0]) - 'A'
	if i < 0 || i >= n {
		return 0, false
	}
	return i, true
}

func formatOptions(opts []session.QuizOption) string {
	lines := make([]string, len(opts))
	for i, o := range opts {
		lines[i] = fmt.Sprintf("  %s. %s", optionLetter(i), o.Text)
	}
	return strings.Join(lines, "\n")
}

func formatQuestion(q *session.QuizQuestion, number, total int, invalid bool) string {
	var b strings.Builder
	if invalid {
		b.WriteString("⚠️ Invalid option.\n\n")
	}
	fmt.Fprintf(&b, "🧠 *Question %d/%d*\n\n", number, total)
	fmt.Fprintf(&b, "%s\n\n*Options:*\n%s\n\n", q.QuestionText, formatOptions(q.Options))
	b.WriteString("Reply with the option letter (A, B, ...) to answer. To exit, send /exit-quiz.")
	return b.String()
}

func formatSubjects(subjects []domain.Subject) string {
	var b strings.Builder
	b.WriteString("📚 *Available Subjects*\n\n")
	b.WriteString("| Subject Name | Subject ID |\n")
	b.WriteString("|--------------|------------|\n")
	for _, s := range subjects {
		fmt.Fprintf(&b, "|  *%s*  |  `00%d`  |\n", s.Name, s.ID)
	}
	b.WriteString("\nUse the Subject ID to enroll, start lessons, or practice quizzes!")
	return b.String()
}

func formatEnrollments(enrollments []domain.Enrollment) string {
	var b strings.Builder
	b.WriteString("📚 *Your Enrolled Subjects*\n\n")
	b.WriteString("| Subject Name | Subject ID |\n")
	b.WriteString("|--------------|------------|\n")
	for _, e := range enrollments {
		fmt.Fprintf(&b, "|  *%s*  |  `00%d`  |\n", e.SubjectName, e.SubjectID)
	}
	b.WriteString("\nUse the Subject ID for lessons, quizzes, and more!")
	return b.String()
}

const helpText = `👋 *Welcome to ClassmateBot!*

Here are the available commands to help you get started:

🆘 */help*  _Get help and see this list of commands._

👤 */create-account*  _Create a new account to begin your learning journey._

📚 */get-subjects*  _View all available subjects you can learn._

✅ */get-enrolled-subjects*  _See the subjects you are currently enrolled in._

➕ */enroll-subject <subject_id>*  _Enroll in a subject using its ID._

📝 */practice-subject <subject_id>*  _Start a quiz practice for a subject._

🎓 */start-lesson <subject_id>*  _Begin a lesson for a subject you are enrolled in._

🆕 */generate-course <preferences>*  _Create a new subject from your learning preferences, e.g. "python programming for beginners"._

🏆 */points*  _See your total points._

💡 _Tip: Use the subject ID from the subjects list for commands that require it._`

const (
	msgWelcome         = "Welcome to ClassmateBot! Type /help for available commands."
	msgUnknownCommand  = "Unknown command. Please type /help for available commands."
	msgSubjectNotFound = "Subject not found. Send /get-subjects to see available subjects."
	msgSessionReset    = "⚠️ Your previous session could not be resumed, so it has been reset. Type /help for available commands."

	msgQuizExited   = "You have exited the quiz. ✅\nSend /practice-subject <subject_id> to try again."
	msgQuizReminder = "You are in a quiz session. Reply with the option letter (e.g. A, B) for the current question, or send /exit-quiz to quit."
	msgNoQuestions  = "No questions available for this subject."

	msgLessonExited   = "You have exited the lesson."
	msgLessonReminder = "Invalid command. Reply /next to continue or /exit-lesson to exit the lesson."
	msgLessonComplete = "You've completed all topics and bites in this subject. Great job! 🎉"
	msgNoLesson       = "No lesson content is available for this subject yet."

	msgGenerationExited = "You have exited the generation process."
	msgGenerationFailed = "❌ We couldn't start building your course right now. Please try /generate-course again later."
)

func generationAck(preferences, estimate string) string {
	return fmt.Sprintf("✅ Got it! Building your custom course from your preferences:\n\n\"_%s_\"\n\n"+
		"This usually takes about *%s*. I'll notify you as soon as it's ready.", preferences, estimate)
}

func generationWaiting(estimate string) string {
	return fmt.Sprintf("⏳ Your course is still being generated. This usually takes about %s.\n\n"+
		"👉 _Send /exit-generation to stop waiting._", estimate)
}
