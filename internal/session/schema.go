package session

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ashureev/classmate/internal/domain"
)

const idleSchema = `{
	"type": "object",
	"maxProperties": 0
}`

const quizSchema = `{
	"type": "object",
	"required": ["subject_id", "attempt_id", "questions", "current_question_index"],
	"properties": {
		"subject_id": {"type": "integer", "minimum": 1},
		"attempt_id": {"type": "string", "minLength": 1},
		"current_question_index": {"type": "integer", "minimum": 0},
		"questions": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["question_id", "question_text", "options"],
				"properties": {
					"question_id": {"type": "integer"},
					"question_text": {"type": "string"},
					"options": {
						"type": "array",
						"minItems": 1,
						"maxItems": 26,
						"items": {
							"type": "object",
							"required": ["option_id", "text", "is_correct"],
							"properties": {
								"option_id": {"type": "integer"},
								"text": {"type": "string"},
								"is_correct": {"type": "boolean"}
							}
						}
					}
				}
			}
		}
	}
}`

const lessonSchema = `{
	"type": "object",
	"required": ["subject_id", "topics", "current_topic_id", "current_bite_id"],
	"properties": {
		"subject_id": {"type": "integer", "minimum": 1},
		"current_topic_id": {"type": "integer"},
		"current_bite_id": {"type": "integer"},
		"topics": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["topic_id", "bites"],
				"properties": {
					"topic_id": {"type": "integer"},
					"bites": {
						"type": "array",
						"items": {
							"type": "object",
							"required": ["bite_id"],
							"properties": {
								"bite_id": {"type": "integer"},
								"bite_name": {"type": "string"},
								"bite_text": {"type": "string"}
							}
						}
					}
				}
			}
		}
	}
}`

const generationSchema = `{
	"type": "object",
	"required": ["preferences"],
	"properties": {
		"preferences": {"type": "string", "minLength": 1},
		"job_id": {"type": "string"},
		"started_at": {"type": "string"}
	}
}`

var schemaSources = map[domain.Mode]string{
	domain.ModeIdle:         idleSchema,
	domain.ModeInQuiz:       quizSchema,
	domain.ModeInLesson:     lessonSchema,
	domain.ModeInGeneration: generationSchema,
}

// schemaCache caches compiled context schemas by mode.
var schemaCache sync.Map // map[domain.Mode]*jsonschema.Schema

// validateSchema checks raw against the structural schema of mode.
func validateSchema(mode domain.Mode, raw []byte) error {
	compiled, err := compiledSchema(mode)
	if err != nil {
		return err
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := compiled.Validate(inst); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func compiledSchema(mode domain.Mode) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(mode); ok {
		return cached.(*jsonschema.Schema), nil
	}

	src, ok := schemaSources[mode]
	if !ok {
		return nil, fmt.Errorf("no context schema for mode %q", mode)
	}
	def, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse schema %q: %w", mode, err)
	}

	c := jsonschema.NewCompiler()
	url := fmt.Sprintf("schema://session/%s.json", mode)
	if err := c.AddResource(url, def); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	schemaCache.Store(mode, compiled)
	return compiled, nil
}
