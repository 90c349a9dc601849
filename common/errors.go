package common

import "github.com/pkg/errors"

// Error classes surfaced by the routing core. Configuration problems are
// never retried; transport problems are reported to the caller and never
// re-routed to a different target.
var (
	ErrUnknownNode       = errors.New("unknown node")
	ErrNoWorkers         = errors.New("no workers registered")
	ErrNoReachableWorker = errors.New("no reachable worker")
	ErrInvalidPolicy     = errors.New("invalid mode")
)
