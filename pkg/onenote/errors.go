package onenote

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotebookNotFound matches any *NotebookNotFoundError.
var ErrNotebookNotFound = errors.New("notebook not found")

// NotebookNotFoundError reports a notebook name with no exact match.
type NotebookNotFoundError struct {
	Name      string
	Available []string
}

func (e *NotebookNotFoundError) Error() string {
	msg := fmt.Sprintf("notebook %q not found", e.Name)
	if len(e.Available) == 0 {
		return msg
	}
	return msg + ". Maybe:\n" + strings.Join(e.Available, "\n")
}

// Is allows errors.Is(err, ErrNotebookNotFound).
func (e *NotebookNotFoundError) Is(target error) bool {
	return target == ErrNotebookNotFound
}
