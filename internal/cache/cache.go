// Package cache implements the Response Cache: a short-TTL byte cache keyed
// on a request fingerprint, fronting the Bar Store for repeated reads.
package cache

import "context"

// Cache is the capability set both backends implement. Values are
// pre-serialized response bytes; Cache never understands bar shapes.
type Cache interface {
	// Get returns the cached bytes for key, or ok=false on miss/expiry.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)

	// Set stores data under key for ttlSeconds.
	Set(ctx context.Context, key string, data []byte, ttlSeconds int) error
}
