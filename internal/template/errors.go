package template

import (
	"errors"
	"fmt"
	"strings"

	"waba-gateway/internal/models"
)

var (
	ErrNotFound      = errors.New("template not found")
	ErrConflict      = errors.New("template name already exists for this user")
	ErrStateConflict = errors.New("operation not allowed in current template status")
)

// ValidationError describes one violated rule on one field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every violation found in a single pass.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Err returns nil for an empty set so callers can write `if err := v.Err(); err != nil`.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// StateError is returned when the lifecycle table refuses an operation.
type StateError struct {
	Status    models.Status
	Operation Operation
}

func (e *StateError) Error() string {
	return fmt.Sprintf("template cannot be %s while %s", e.Operation.pastTense(), e.Status)
}

func (e *StateError) Is(target error) bool {
	return target == ErrStateConflict
}
