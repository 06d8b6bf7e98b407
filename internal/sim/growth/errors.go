package growth

import "errors"

var (
	// ErrInvalidArgument aborts growth for one engine; the caller keeps running.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrMissingDependency means there were no anchors to grow from. Callers treat
	// it as an empty segment rather than a failure.
	ErrMissingDependency = errors.New("missing dependency")
)
