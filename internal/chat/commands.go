package chat

import (
	"errors"
	"strconv"
	"strings"
)

// ErrUnknownCommand is returned for text that names no idle command.
var ErrUnknownCommand = errors.New("unknown command")

// ArgumentError reports a missing or malformed command argument. Message
// is shown to the user as is.
type ArgumentError struct {
	Command string
	Message string
}

func (e *ArgumentError) Error() string {
	return e.Command + ": " + e.Message
}

// CommandKind enumerates the idle commands.
type CommandKind int

const (
	CmdHelp CommandKind = iota + 1
	CmdCreateAccount
	CmdGetSubjects
	CmdGetEnrolledSubjects
	CmdEnrollSubject
	CmdPracticeSubject
	CmdStartLesson
	CmdGenerateCourse
	CmdPoints
)

// Command is a parsed idle command. Only the argument of its kind is set.
type Command struct {
	Kind        CommandKind
	SubjectID   int64
	Preferences string
}

type argShape int

const (
	argNone argShape = iota
	argSubjectID
	argText
)

type commandSpec struct {
	kind       CommandKind
	arg        argShape
	missingArg string
}

var commandTable = map[string]commandSpec{
	"/help":                  {kind: CmdHelp},
	"/create-account":        {kind: CmdCreateAccount},
	"/get-subjects":          {kind: CmdGetSubjects},
	"/get-enrolled-subjects": {kind: CmdGetEnrolledSubjects},
	"/points":                {kind: CmdPoints},
	"/enroll-subject": {
		kind: CmdEnrollSubject, arg: argSubjectID,
		missingArg: "Subject ID is required for enrollment.",
	},
	"/practice-subject": {
		kind: CmdPracticeSubject, arg: argSubjectID,
		missingArg: "Subject ID is required for practicing.",
	},
	"/start-lesson": {
		kind: CmdStartLesson, arg: argSubjectID,
		missingArg: "Subject ID is required to start a lesson.",
	},
	"/generate-course": {
		kind: CmdGenerateCourse, arg: argText,
		missingArg: "Preferences are required to generate a course.",
	},
}

const msgSubjectIDNotNumber = "Subject ID must be a number."

// ParseCommand splits text into a command name and its argument. The name
// is matched case-insensitively.
func ParseCommand(text string) (Command, error) {
	text = strings.TrimSpace(text)
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Command{}, ErrUnknownCommand
	}

	name := strings.ToLower(fields[0])
	spec, ok := commandTable[name]
	if !ok {
		return Command{}, ErrUnknownCommand
	}
	cmd := Command{Kind: spec.kind}

	switch spec.arg {
	case argSubjectID:
		if len(fields) < 2 {
			return Command{}, &ArgumentError{Command: name, Message: spec.missingArg}
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil || id <= 0 {
			return Command{}, &ArgumentError{Command: name, Message: msgSubjectIDNotNumber}
		}
		cmd.SubjectID = id
	case argText:
		rest := strings.TrimSpace(text[len(fields[0]):])
		rest = strings.TrimSpace(strings.Trim(rest, `"'“”‘’`))
		if rest == "" {
			return Command{}, &ArgumentError{Command: name, Message: spec.missingArg}
		}
		cmd.Preferences = rest
	}
	return cmd, nil
}
