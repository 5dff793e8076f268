package graph

import "errors"

var (
	ErrNotInitialized     = errors.New("graph: not initialized")
	ErrAlreadyInitialized = errors.New("graph: already initialized")
	ErrShutdown           = errors.New("graph: shut down")
	ErrNodeAllocation     = errors.New("graph: cannot allocate node")
	ErrInvalidParameter   = errors.New("graph: invalid node parameter")
	ErrLink               = errors.New("graph: cannot link nodes")
	ErrUnknownWaveform    = errors.New("graph: unknown waveform")
)
