package exception

import "errors"

// Remote strategy errors
var (
	ErrRemoteUnavailable      = errors.New("remote: unavailable")
	ErrRemoteDeadlineExceeded = errors.New("remote: deadline exceeded")
	ErrRemoteTornDown         = errors.New("remote: adapter torn down")
	ErrRemoteNotInitialized   = errors.New("remote: not initialized")
)
