// Package klerrors defines the node's small error taxonomy. Components
// wrap an underlying cause with %w against one of these sentinels so
// callers can branch with errors.Is without string matching.
package klerrors

import "errors"

var (
	// ErrConfig marks an invalid or missing setting; fatal at startup.
	ErrConfig = errors.New("config error")

	// ErrStore marks an engine/connection failure. Retried only by loops,
	// with backoff — never retried inside the store itself.
	ErrStore = errors.New("store error")

	// ErrUpstream marks an HTTP/timeout failure talking to the exchange.
	// Retried inside the upstream client up to its attempt budget.
	ErrUpstream = errors.New("upstream error")

	// ErrProtocol marks an unexpected response shape from upstream. Not
	// retried; bubbles up to the caller.
	ErrProtocol = errors.New("protocol error")
)
