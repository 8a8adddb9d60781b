package exception

import "errors"

// Execution engine errors
var (
	ErrInvalidSignal     = errors.New("execution: invalid signal")
	ErrUnknownAlgorithm  = errors.New("execution: unknown algorithm")
	ErrPluginNotFound    = errors.New("execution: plugin not found")
	ErrPluginFault       = errors.New("execution: plugin fault")
	ErrPluginTimeout     = errors.New("execution: plugin timeout")
	ErrInstanceCompleted = errors.New("execution: instance already completed")
)
