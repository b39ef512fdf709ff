package events

import "time"

// Transaction outcomes.
const (
	TxCommitted  = "commit"
	TxRolledBack = "rollback"
)

// Transaction is emitted when a storage transaction ends.
type Transaction struct {
	Outcome  string
	Duration time.Duration
	Err      error
}

// LoaderBatch is emitted after a loader dispatched one batch query.
type LoaderBatch struct {
	Loader   string
	Keys     int
	IDs      int
	Duration time.Duration
	Err      error
}

// ResolverError is emitted when a field resolver fails.
type ResolverError struct {
	ObjectType string
	Field      string
	Code       string
}
