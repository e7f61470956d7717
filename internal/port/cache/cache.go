// Package cache defines the port for memoizing rendered map frames.
package cache

// Frames stores rendered frames by fingerprint. A miss only costs a
// re-render, so implementations may evict at any time.
type Frames interface {
	Frame(key string) (string, bool)
	StoreFrame(key, frame string)

	// Invalidate drops every stored frame.
	Invalidate()
}
