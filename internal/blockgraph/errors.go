package blockgraph

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/blockgrid/internal/region"
)

// ErrUnalignableRequest is wrapped by UnalignableRequestError.
var ErrUnalignableRequest = errors.New("unalignable request")

// UnalignableRequestError is returned when a task's request or block
// templates cannot be mapped onto a block grid.
type UnalignableRequestError struct {
	TaskID  string
	Request region.Region
	Err     error
}

func (e *UnalignableRequestError) Error() string {
	return fmt.Sprintf("%s for task %q (request %s): %v", ErrUnalignableRequest, e.TaskID, e.Request, e.Err)
}

func (e *UnalignableRequestError) Unwrap() []error {
	return []error{ErrUnalignableRequest, e.Err}
}
