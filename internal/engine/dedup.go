package engine

import (
	"sync"
	"time"
)

// ProcessedSet tracks event+market keys already analyzed within a freshness
// window so concurrent scans do not emit duplicate opportunities for the
// same market. It is safe for concurrent use.
type ProcessedSet struct {
	seen map[string]time.Time
	ttl  time.Duration
	mu   sync.Mutex
}

// NewProcessedSet creates a ProcessedSet that considers a market processed
// for the given window after it is first seen.
func NewProcessedSet(ttl time.Duration) *ProcessedSet {
	return &ProcessedSet{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// Seen reports whether key was recorded within the window. A key that has
// not been seen (or whose entry expired) is recorded and false is returned.
func (p *ProcessedSet) Seen(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if last, ok := p.seen[key]; ok && now.Sub(last) < p.ttl {
		return true
	}
	p.seen[key] = now
	return false
}

// Cleanup removes expired entries. Call periodically to bound memory growth.
func (p *ProcessedSet) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for key, ts := range p.seen {
		if now.Sub(ts) >= p.ttl {
			delete(p.seen, key)
		}
	}
}

// Len returns the number of tracked keys, expired entries included.
func (p *ProcessedSet) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}
