package signaling

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// FilterCapacity is the maximum number of directed (from,to) pairs the
// duplicate filter remembers before evicting the least-recently-inserted.
const FilterCapacity = 6000

// DuplicateFilter suppresses repeated delivery-failure notices for a given
// (from,to) pair once the pair has already produced a reject or
// peer-not-found event. It wraps a simplelru.LRU (whose Contains does not
// refresh recency) behind a mutex, so lookups never promote an entry and
// only Put does.
type DuplicateFilter struct {
	mu    sync.Mutex
	cache *simplelru.LRU[string, struct{}]
}

// NewDuplicateFilter builds a filter with the standard 6000-entry capacity.
func NewDuplicateFilter() *DuplicateFilter {
	cache, err := simplelru.NewLRU[string, struct{}](FilterCapacity, nil)
	if err != nil {
		// Only returns an error for a non-positive size, which never
		// happens with the constant above.
		panic(err)
	}
	return &DuplicateFilter{cache: cache}
}

// FilterKey builds the filter key for a directed peer pair. Concatenation
// is deliberately separator-free, matching the original implementation;
// this means distinct (from,to) pairs can collide (e.g. ("ab","cd") and
// ("abc","d")) and that is preserved as-is rather than fixed.
func FilterKey(from, to string) string {
	return from + to
}

// Contains reports whether key is present without affecting its recency.
func (f *DuplicateFilter) Contains(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cache.Contains(key)
}

// Put inserts key, evicting the least-recently-inserted entry if the
// filter is already at capacity.
func (f *DuplicateFilter) Put(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache.Add(key, struct{}{})
}

// Len reports the current number of entries (test/observability helper).
func (f *DuplicateFilter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cache.Len()
}
