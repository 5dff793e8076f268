package output

import "errors"

var (
	ErrRunning    = errors.New("output: sink already started")
	ErrNotRunning = errors.New("output: sink not started")
	ErrFormat     = errors.New("output: unsupported format")
)
