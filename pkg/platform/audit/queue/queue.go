// Package queue holds pending audit entries between recording and delivery.
package queue

import (
	"sync"

	audit "voyage/pkg/platform/audit"
)

// DefaultCapacity is used when a non-positive capacity is requested.
const DefaultCapacity = 100

// Queue is a bounded FIFO ring of pending entries. When full, the oldest
// entries are dropped to make room; recency wins over completeness.
type Queue struct {
	mu       sync.Mutex
	entries  []audit.PendingEntry
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int

	dropped int64
}

// New creates a queue with the given capacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		entries:  make([]audit.PendingEntry, capacity),
		capacity: capacity,
	}
}

// Enqueue appends entry at the tail, evicting the oldest entry if the queue is
// full. It returns the resulting length and how many entries were evicted.
func (q *Queue) Enqueue(entry audit.PendingEntry) (length int, evicted int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count >= q.capacity {
		q.entries[q.tail] = audit.PendingEntry{}
		q.tail = (q.tail + 1) % q.capacity
		q.count--
		q.dropped++
		evicted = 1
	}

	q.entries[q.head] = entry
	q.head = (q.head + 1) % q.capacity
	q.count++
	return q.count, evicted
}

// DrainAll atomically empties the queue and returns its contents oldest first.
// Entries enqueued after the drain belong to the next batch.
func (q *Queue) DrainAll() []audit.PendingEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return nil
	}

	result := make([]audit.PendingEntry, q.count)
	for i := range result {
		result[i] = q.entries[q.tail]
		q.entries[q.tail] = audit.PendingEntry{}
		q.tail = (q.tail + 1) % q.capacity
	}
	q.count = 0
	q.head = q.tail
	return result
}

// Requeue puts a failed batch back at the head, ahead of anything enqueued
// since it was drained. If the combined length exceeds capacity the oldest
// entries of the batch are dropped. It returns how many were dropped.
func (q *Queue) Requeue(batch []audit.PendingEntry) (evicted int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	// Walk the batch newest to oldest so a full queue sheds the oldest.
	for i := len(batch) - 1; i >= 0; i-- {
		if q.count >= q.capacity {
			evicted = i + 1
			break
		}
		q.tail = (q.tail - 1 + q.capacity) % q.capacity
		q.entries[q.tail] = batch[i]
		q.count++
	}
	q.dropped += int64(evicted)
	return evicted
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Capacity returns the fixed capacity.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Dropped returns the total number of entries evicted over the queue's life.
func (q *Queue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
