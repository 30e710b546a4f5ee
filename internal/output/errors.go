package output

import (
	"errors"
	"fmt"
)

// ErrInvalidIdentifier is returned for identifiers that cannot name a single
// folder below the output root.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// FilesystemError reports a failed folder creation or file write.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("output: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}
