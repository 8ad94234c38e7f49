package taskgraph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCyclicDependency is wrapped by every cycle error.
	ErrCyclicDependency = errors.New("cyclic task dependency")
	// ErrConflictingDefinition is returned when one task id names two
	// different definitions.
	ErrConflictingDefinition = errors.New("conflicting task definitions")
)

// CycleError reports a dependency cycle. Cycle lists task ids along the cycle
// and repeats the first id at the end.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCyclicDependency, strings.Join(e.Cycle, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCyclicDependency }
