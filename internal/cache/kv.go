package cache

// Invalidator is the explicit-invalidation contract revalidation triggers
// depend on. Implementations must be safe for concurrent use by multiple
// goroutines.
type Invalidator interface {
	Invalidate(key string) bool
	InvalidatePrefix(prefix string) int
	Clear() int
}

var _ Invalidator = (*Cache)(nil)
