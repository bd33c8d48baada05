// Package cache is the advisory read-through cache in front of the
// database. Every method can fail; callers log and fall through to the
// primary path. Nothing here is allowed to fail a request.
package cache

import (
	"context"
	"time"
)

// Kind selects the entity namespace and its TTL.
type Kind string

const (
	KindProduct Kind = "product"
	KindStore   Kind = "store"
	KindOrder   Kind = "order"
	KindSession Kind = "session"
)

// TTL is the only invalidation protocol besides explicit delete-on-write.
func (k Kind) TTL() time.Duration {
	switch k {
	case KindOrder:
		return 12 * time.Hour
	case KindSession:
		return 2 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Service is the cache capability. The contract is advisory only: a miss
// and an error look the same to the business logic — read the database.
type Service interface {
	// Get unmarshals the cached entry into out. ok is false on miss.
	Get(ctx context.Context, kind Kind, id string, out any) (ok bool, err error)
	// Put stores value under kind/id with the kind's TTL.
	Put(ctx context.Context, kind Kind, id string, value any) error
	// Delete drops the entry; deleting a missing entry is not an error.
	Delete(ctx context.Context, kind Kind, id string) error
	// Healthy reports backend reachability for the status endpoint.
	Healthy(ctx context.Context) bool
}
