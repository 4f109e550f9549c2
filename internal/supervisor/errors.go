package supervisor

import "errors"

// Caller-facing control errors. Background conditions (stop-timeout
// escalation, crashes) are never returned from an operation; they are
// recorded in state and observable via Status.
var (
	// ErrAlreadyRunning is returned by Start while a server is live or
	// transitioning.
	ErrAlreadyRunning = errors.New("server is already running")

	// ErrNotRunning is returned by Stop and Kill when no server process
	// accepts the operation in its current state.
	ErrNotRunning = errors.New("server is not running")

	// ErrShuttingDown is returned by control operations after Shutdown.
	ErrShuttingDown = errors.New("supervisor is shutting down")
)

// SpawnError wraps an OS-level failure to create the server process.
type SpawnError struct {
	Err error
}

func (e *SpawnError) Error() string { return "failed to spawn server: " + e.Err.Error() }

func (e *SpawnError) Unwrap() error { return e.Err }
