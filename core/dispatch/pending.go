package dispatch

import "sync"

// PendingEntry is a job waiting for a vehicle to bring material to Station.
type PendingEntry struct {
	JobID   string
	Station string
}

// PendingQueue keeps jobs parked for lack of vehicles in arrival order. A job
// appears at most once.
type PendingQueue struct {
	mu      sync.Mutex
	entries []PendingEntry
}

// Push parks a job at the back of the queue. A job already parked keeps its
// place and only its station is updated.
func (q *PendingQueue) Push(e PendingEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.entries {
		if q.entries[i].JobID == e.JobID {
			q.entries[i].Station = e.Station
			return
		}
	}
	q.entries = append(q.entries, e)
	pendingMaterialJobs.Set(float64(len(q.entries)))
}

// Remove drops the entry of jobID and reports whether one existed.
func (q *PendingQueue) Remove(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	ok := q.removeLocked(jobID)
	pendingMaterialJobs.Set(float64(len(q.entries)))
	return ok
}

// Entries returns a snapshot in arrival order.
func (q *PendingQueue) Entries() []PendingEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]PendingEntry(nil), q.entries...)
}

// Len returns the number of parked jobs.
func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *PendingQueue) removeLocked(jobID string) bool {
	for i, e := range q.entries {
		if e.JobID == jobID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}
