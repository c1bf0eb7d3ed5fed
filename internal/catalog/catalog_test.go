package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/classmate/internal/store"
)

const seedYAML = `
subjects:
  - name: Go Basics
    description: First steps in Go
    topics:
      - name: Variables
        bites:
          - name: Declaring
            text: Use var or :=.
          - name: Zero values
            text: Every type has one.
      - name: Functions
        bites:
          - name: Signatures
            text: Parameters then results.
    quiz:
      questions:
        - text: Which keyword declares a function?
          options:
            - text: func
              is_correct: true
            - text: def
  - name: Rust
    creator_type: user
`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAndApply(t *testing.T) {
	ctx := context.Background()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "classmate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	f, err := Load(writeSeed(t, seedYAML))
	require.NoError(t, err)
	require.Len(t, f.Subjects, 2)

	sum, err := Apply(ctx, repo, f)
	require.NoError(t, err)
	assert.Equal(t, Summary{Subjects: 2, Topics: 2, Bites: 3, Quizzes: 1, Questions: 1}, sum)

	subjects, err := repo.ListSubjects(ctx)
	require.NoError(t, err)
	require.Len(t, subjects, 2)
	assert.Equal(t, "Go Basics", subjects[0].Name)
	assert.Equal(t, "user", string(subjects[1].CreatorType))

	topics, err := repo.BitesForSubject(ctx, subjects[0].ID)
	require.NoError(t, err)
	require.Len(t, topics, 2)
	require.Len(t, topics[0].Bites, 2)
	assert.Equal(t, "Declaring", topics[0].Bites[0].Name)
	assert.Equal(t, "Zero values", topics[0].Bites[1].Name)

	questions, err := repo.QuestionsForSubject(ctx, subjects[0].ID)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	require.Len(t, questions[0].Options, 2)
	assert.True(t, questions[0].Options[0].IsCorrect)
	assert.False(t, questions[0].Options[1].IsCorrect)
}

func TestLoadRejectsInvalidSpecs(t *testing.T) {
	tests := map[string]string{
		"missing name": `
subjects:
  - description: nameless
`,
		"bad creator": `
subjects:
  - name: X
    creator_type: robot
`,
		"two correct options": `
subjects:
  - name: X
    quiz:
      questions:
        - text: pick
          options:
            - {text: a, is_correct: true}
            - {text: b, is_correct: true}
`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeSeed(t, content))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestApplyRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "classmate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	f := &File{Subjects: []SubjectSpec{
		{Name: "Fine"},
		{Name: "Broken", Quiz: &QuizSpec{}},
	}}
	_, err = Apply(ctx, repo, f)
	require.ErrorIs(t, err, ErrInvalid)

	subjects, err := repo.ListSubjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, subjects)
}
