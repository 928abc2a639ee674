package realtime

import (
	"strconv"
	"sync/atomic"
)

// IDAllocator hands out correlation ids for method calls and subscriptions.
// Ids are decimal strings of a counter starting at 1 and are never reused.
// The zero value is ready to use and safe for concurrent callers.
type IDAllocator struct {
	last atomic.Uint64
}

// NewIDAllocator creates an allocator whose first id is "1".
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

// Next returns a fresh correlation id.
func (a *IDAllocator) Next() string {
	return strconv.FormatUint(a.last.Add(1), 10)
}
