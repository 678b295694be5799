// Package session provides expiring stores for in-flight protocol state.
package session

type Store[K comparable, V any] interface {
	Get(key K) (V, bool)
	Pop(key K) (V, bool)
	Set(key K, data V) error
	Save(data V) (K, error)
}

// KeyFactory generates and validates store keys. ad is opaque "associated
// data" embedded in the key at generation time.
type KeyFactory[K comparable] interface {
	New(ad uint64) K
	Check(key K) error
}
