package models

import (
	"fmt"
	"strings"
)

// ValidationError reports a puzzle that is missing a required field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid puzzle: %s %s", e.Field, e.Reason)
}

// Validate checks the fields a puzzle needs before it can be stored.
func (p Puzzle) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return &ValidationError{Field: "title", Reason: "is required"}
	}
	if strings.TrimSpace(p.Scenario) == "" {
		return &ValidationError{Field: "scenario", Reason: "is required"}
	}
	if strings.TrimSpace(p.Truth) == "" {
		return &ValidationError{Field: "truth", Reason: "is required"}
	}
	if p.MaxQuestions != nil && *p.MaxQuestions <= 0 {
		return &ValidationError{Field: "maxQuestions", Reason: "must be positive"}
	}
	for i, s := range p.Stages {
		if strings.TrimSpace(s.Content) == "" {
			return &ValidationError{Field: fmt.Sprintf("stages[%d].content", i), Reason: "is required"}
		}
		if strings.TrimSpace(s.Truth) == "" {
			return &ValidationError{Field: fmt.Sprintf("stages[%d].truth", i), Reason: "is required"}
		}
		if s.MaxQuestions != nil && *s.MaxQuestions <= 0 {
			return &ValidationError{Field: fmt.Sprintf("stages[%d].maxQuestions", i), Reason: "must be positive"}
		}
	}
	return nil
}
