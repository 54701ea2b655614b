package worker

import (
	"errors"
	"fmt"

	errs "github.com/Gondolav/inventory-connector/errors"
)

// Pool errors. Lifecycle errors also match the shared sentinels in the
// errors package, so ErrPoolStopped satisfies errors.Is(err, errs.ErrClosed).
var (
	ErrPoolNotStarted     = errors.New("worker pool not started")
	ErrPoolStopped        = fmt.Errorf("worker pool stopped: %w", errs.ErrClosed)
	ErrPoolAlreadyStarted = fmt.Errorf("worker pool: %w", errs.ErrAlreadyStarted)
	ErrQueueFull          = errors.New("worker pool queue full")
	ErrNilProcessor       = errors.New("processor function cannot be nil")
	ErrStopTimeout        = errors.New("timeout waiting for workers to stop")
)
