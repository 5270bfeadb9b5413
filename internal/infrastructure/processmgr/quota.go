package processmgr

import (
	"slices"
	"sync"
)

// procQuota caps the number of live processes. Every slot is owned by one
// internal id, so a slot that is never given back points at its process.
type procQuota struct {
	mu     sync.Mutex
	limit  int64
	owners map[int64]struct{}
}

func newProcQuota(limit int64) *procQuota {
	return &procQuota{limit: max(limit, 0), owners: make(map[int64]struct{})}
}

// take claims a slot for ipid. Taking twice for the same ipid panics.
func (q *procQuota) take(ipid int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.owners[ipid]; ok {
		panic("processmgr: ipid already holds a process slot")
	}
	if int64(len(q.owners)) >= q.limit {
		return false
	}
	q.owners[ipid] = struct{}{}
	return true
}

// give returns the slot held by ipid. Giving back a slot ipid does not hold panics.
func (q *procQuota) give(ipid int64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.owners[ipid]; !ok {
		panic("processmgr: ipid holds no process slot")
	}
	delete(q.owners, ipid)
}

// setLimit changes the cap. Owners above a lowered cap keep their slots.
func (q *procQuota) setLimit(n int64) (old int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	old, q.limit = q.limit, max(n, 0)
	return old
}

// Usage is a snapshot of the live-process quota.
type Usage struct {
	Limit  int64   `json:"max_procs"`
	InUse  int64   `json:"live"`
	Owners []int64 `json:"-"` // internal ids, ascending
}

func (q *procQuota) usage() Usage {
	q.mu.Lock()
	defer q.mu.Unlock()

	owners := make([]int64, 0, len(q.owners))
	for id := range q.owners {
		owners = append(owners, id)
	}
	slices.Sort(owners)
	return Usage{Limit: q.limit, InUse: int64(len(owners)), Owners: owners}
}
