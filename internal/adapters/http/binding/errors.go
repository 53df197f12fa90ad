package binding

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds for binding errors.
var (
	ErrValidation    = errors.New("request validation failed")
	ErrInvalidTarget = errors.New("bind target must be a pointer to a struct")
)

// Issue describes one rejected input. Loc is the source followed by the field
// name and, for list elements, the element index.
type Issue struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// Source returns the first element of Loc.
func (i Issue) Source() Source {
	if len(i.Loc) == 0 {
		return ""
	}
	s, _ := i.Loc[0].(string)
	return Source(s)
}

// ValidationError carries every issue found while binding a request.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, fmt.Sprintf("%s: %s", locString(is.Loc), is.Msg))
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrValidation) true.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func locString(loc []any) string {
	parts := make([]string, 0, len(loc))
	for _, p := range loc {
		parts = append(parts, fmt.Sprint(p))
	}
	return strings.Join(parts, ".")
}
