package schema

import (
	"fmt"
	"strings"
)

// Violation is a single failed rule. Field is the JSON path of the offending
// field inside the validated tree, e.g. "dependencies[1].systemModule".
type Violation struct {
	Field     string `json:"field"`
	Condition string `json:"condition"`
}

// ValidationError is returned when a vertex or a vertex query breaks the
// category rules. It is never retried.
type ValidationError struct {
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s %s", v.Field, v.Condition))
	}
	return "invalid vertex: " + strings.Join(parts, "; ")
}
