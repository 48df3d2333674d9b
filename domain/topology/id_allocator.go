package topology

import (
	"container/heap"
	"strconv"
	"sync"
)

// IDAllocator issues short numeric device ids from one pool shared by every
// device type. Recycled ids are reused smallest first before the counter
// advances. Caller-chosen non-numeric ids are tracked too so that every
// device id stays unique across topologies. Safe for concurrent use.
type IDAllocator struct {
	mu       sync.Mutex
	next     int
	used     map[int]struct{}
	named    map[string]struct{}
	recycled map[int]struct{}
	free     intHeap // may hold stale entries; recycled is authoritative
}

// NewIDAllocator creates an allocator whose first id is "1"
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{
		next:     1,
		used:     make(map[int]struct{}),
		named:    make(map[string]struct{}),
		recycled: make(map[int]struct{}),
	}
}

// Generate returns the smallest recycled id, or the next counter value
func (a *IDAllocator) Generate() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	for a.free.Len() > 0 {
		n := heap.Pop(&a.free).(int)
		if _, ok := a.recycled[n]; !ok {
			continue
		}
		delete(a.recycled, n)
		a.used[n] = struct{}{}
		return strconv.Itoa(n)
	}

	n := a.next
	a.next++
	a.used[n] = struct{}{}
	return strconv.Itoa(n)
}

// Recycle returns an id to the pool. Ids the allocator never saw are
// ignored; a non-numeric id is released but never handed out again by
// Generate. Reports whether the id went back into the pool.
func (a *IDAllocator) Recycle(id string) bool {
	n, ok := numeric(id)

	a.mu.Lock()
	defer a.mu.Unlock()

	if !ok {
		delete(a.named, id)
		return false
	}

	if _, ok := a.used[n]; !ok {
		return false
	}
	delete(a.used, n)
	a.recycled[n] = struct{}{}
	heap.Push(&a.free, n)
	return true
}

// Reserve marks an externally created id (loaded from storage or imported) as
// in use so Generate never hands it out again. Ids skipped by a jump of the
// counter are not back-filled.
func (a *IDAllocator) Reserve(id string) bool {
	n, ok := numeric(id)
	if !ok {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.take(n)
	return true
}

// Claim takes id only if nobody holds it yet. Unlike Reserve it also accepts
// non-numeric ids. Reports false for an id already in use or an empty id.
func (a *IDAllocator) Claim(id string) bool {
	if id == "" {
		return false
	}
	n, isNum := numeric(id)

	a.mu.Lock()
	defer a.mu.Unlock()

	if !isNum {
		if _, held := a.named[id]; held {
			return false
		}
		a.named[id] = struct{}{}
		return true
	}
	if _, held := a.used[n]; held {
		return false
	}
	a.take(n)
	return true
}

// take 调用方持锁
func (a *IDAllocator) take(n int) {
	delete(a.recycled, n)
	a.used[n] = struct{}{}
	if n >= a.next {
		a.next = n + 1
	}
}

// InUse reports whether id is currently allocated
func (a *IDAllocator) InUse(id string) bool {
	n, isNum := numeric(id)

	a.mu.Lock()
	defer a.mu.Unlock()

	if !isNum {
		_, held := a.named[id]
		return held
	}
	_, held := a.used[n]
	return held
}

// numeric 只有正整数参与计数器
func numeric(id string) (int, bool) {
	n, err := strconv.Atoi(id)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Stats returns the number of ids in use and waiting for reuse
func (a *IDAllocator) Stats() (used, recycled int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.used), len(a.recycled)
}

type intHeap []int

func (h intHeap) Len() int           { return len(h) }
func (h intHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
