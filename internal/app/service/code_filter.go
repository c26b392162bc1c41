package service

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// CodeFilter is a bloom filter over every short code the store has ever
// handed out. A negative answer is definite, so generation can skip the
// store round-trip for fresh candidates; a positive answer only costs one
// extra uniqueness query. Deleted codes linger in the filter, which is
// harmless: the store check still decides.
type CodeFilter struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
}

// NewCodeFilter sizes the filter for the expected number of codes at a 1%
// false-positive rate.
func NewCodeFilter(expected uint) *CodeFilter {
	if expected == 0 {
		expected = 1 << 20
	}
	return &CodeFilter{filter: bloom.NewWithEstimates(expected, 0.01)}
}

// Seed loads existing codes, typically straight from the store at startup.
func (f *CodeFilter) Seed(codes []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range codes {
		f.filter.AddString(c)
	}
}

// Add registers a newly issued code.
func (f *CodeFilter) Add(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.AddString(code)
}

// MayContain reports whether code might already be in use. False means
// definitely unused.
func (f *CodeFilter) MayContain(code string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter.TestString(code)
}
