package session

import "errors"

var (
	// ErrGateClosed indicates the gate is already held by another transaction.
	ErrGateClosed = errors.New("sync gate already closed")

	// ErrGateNotClosed indicates Open was called without a matching Close.
	ErrGateNotClosed = errors.New("sync gate not closed")

	// ErrFullSyncRequired is returned by a backend that cannot absorb a
	// partial update and needs the whole buffer instead.
	ErrFullSyncRequired = errors.New("full sync required")
)
