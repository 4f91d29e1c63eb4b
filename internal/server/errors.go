package server

import "errors"

// Gateway errors
var (
	ErrServerClosed         = errors.New("server is closed")
	ErrServerNotRunning     = errors.New("server is not running")
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrIdentityRequired     = errors.New("user identity required")
	ErrInvalidEnvelope      = errors.New("invalid message envelope")
	ErrSessionClosed        = errors.New("session is closed")
	ErrSessionBacklogged    = errors.New("session outbound queue overflow")
)
