// internal/search/keys.go
package search

import (
	"fmt"
	"sync"
)

// KeyRotator hands out API keys round-robin and tracks quota-exhausted keys
// so retries can move on to the next key.
type KeyRotator struct {
	mu        sync.Mutex
	keys      []string
	exhausted map[int]bool
	next      int
}

// NewKeyRotator creates a rotator over the given keys.
func NewKeyRotator(keys []string) (*KeyRotator, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("at least one API key is required")
	}
	return &KeyRotator{
		keys:      keys,
		exhausted: make(map[int]bool),
	}, nil
}

// GetTotalKeys returns the number of configured keys.
func (r *KeyRotator) GetTotalKeys() int {
	return len(r.keys)
}

// GetNextKey returns the next non-exhausted key and its index. All keys
// exhausted is an error; callers should surface it as a backend failure.
func (r *KeyRotator) GetNextKey() (string, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < len(r.keys); i++ {
		idx := (r.next + i) % len(r.keys)
		if r.exhausted[idx] {
			continue
		}
		r.next = (idx + 1) % len(r.keys)
		return r.keys[idx], idx, nil
	}

	return "", -1, fmt.Errorf("all %d API keys are exhausted", len(r.keys))
}

// MarkKeyAsExhausted flags a key so GetNextKey skips it.
func (r *KeyRotator) MarkKeyAsExhausted(index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index < 0 || index >= len(r.keys) {
		return fmt.Errorf("key index %d out of range", index)
	}
	r.exhausted[index] = true
	return nil
}

// Reset clears all exhausted flags. Intended for periodic quota resets.
func (r *KeyRotator) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exhausted = make(map[int]bool)
}
