// Package engine is the client side of the node-local data engine: it
// executes one raw statement at a time and classifies the outcome as rows
// or a write acknowledgement.
package engine

// Row is one result row keyed by column name.
type Row map[string]interface{}

// Result is the outcome of a single statement. Reads carry Rows; writes
// carry an acknowledgement and the affected row count.
type Result struct {
	Rows         []Row
	Acknowledged bool
	RowsAffected int64
}

// Engine executes raw statements against the local data engine. Whether a
// failure is fatal to the whole request or to one leg of a fan-out is the
// caller's decision.
type Engine interface {
	Execute(query string) (*Result, error)
	Close() error
}
