package queue

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	audit "voyage/pkg/platform/audit"
)

type QueueSuite struct {
	suite.Suite
}

func TestQueueSuite(t *testing.T) {
	suite.Run(t, new(QueueSuite))
}

func entry(n int) audit.PendingEntry {
	return audit.PendingEntry{
		UserID:       "user-1",
		Action:       audit.ActionUpdate,
		ResourceType: audit.ResourceBooking,
		ResourceID:   fmt.Sprintf("e%d", n),
	}
}

func ids(entries []audit.PendingEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ResourceID
	}
	return out
}

func (s *QueueSuite) TestEnqueue() {
	s.Run("preserves call order", func() {
		q := New(10)
		for i := 1; i <= 5; i++ {
			q.Enqueue(entry(i))
		}
		s.Equal([]string{"e1", "e2", "e3", "e4", "e5"}, ids(q.DrainAll()))
	})

	s.Run("reports length after append", func() {
		q := New(10)
		n, evicted := q.Enqueue(entry(1))
		s.Equal(1, n)
		s.Zero(evicted)
		n, _ = q.Enqueue(entry(2))
		s.Equal(2, n)
	})

	s.Run("evicts oldest beyond capacity", func() {
		q := New(3)
		for i := 1; i <= 4; i++ {
			q.Enqueue(entry(i))
		}
		s.Equal(3, q.Len())
		s.Equal(int64(1), q.Dropped())
		s.Equal([]string{"e2", "e3", "e4"}, ids(q.DrainAll()))
	})

	s.Run("keeps the most recent capacity entries", func() {
		q := New(100)
		for i := 1; i <= 250; i++ {
			q.Enqueue(entry(i))
		}
		drained := q.DrainAll()
		s.Len(drained, 100)
		s.Equal("e151", drained[0].ResourceID)
		s.Equal("e250", drained[99].ResourceID)
		s.Equal(int64(150), q.Dropped())
	})

	s.Run("non-positive capacity uses default", func() {
		s.Equal(DefaultCapacity, New(0).Capacity())
		s.Equal(DefaultCapacity, New(-5).Capacity())
	})
}

func (s *QueueSuite) TestDrainAll() {
	s.Run("empty queue returns nil", func() {
		s.Nil(New(5).DrainAll())
	})

	s.Run("empties the queue", func() {
		q := New(5)
		q.Enqueue(entry(1))
		q.DrainAll()
		s.Zero(q.Len())
		s.Nil(q.DrainAll())
	})

	s.Run("works after wraparound", func() {
		q := New(3)
		q.Enqueue(entry(1))
		q.Enqueue(entry(2))
		q.DrainAll()
		q.Enqueue(entry(3))
		q.Enqueue(entry(4))
		q.Enqueue(entry(5))
		s.Equal([]string{"e3", "e4", "e5"}, ids(q.DrainAll()))
	})

	s.Run("concurrent enqueues are never lost", func() {
		q := New(10000)
		const writers, perWriter = 8, 500

		var wg sync.WaitGroup
		var mu sync.Mutex
		var collected []audit.PendingEntry
		done := make(chan struct{})
		drained := make(chan struct{})

		go func() {
			defer close(drained)
			for {
				select {
				case <-done:
					return
				default:
					batch := q.DrainAll()
					mu.Lock()
					collected = append(collected, batch...)
					mu.Unlock()
				}
			}
		}()

		for w := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range perWriter {
					q.Enqueue(entry(w*perWriter + i))
				}
			}()
		}
		wg.Wait()
		close(done)
		<-drained

		mu.Lock()
		defer mu.Unlock()
		collected = append(collected, q.DrainAll()...)
		s.Len(collected, writers*perWriter)
	})
}

func (s *QueueSuite) TestRequeue() {
	s.Run("failed batch goes ahead of newer entries", func() {
		q := New(100)
		for i := 1; i <= 5; i++ {
			q.Enqueue(entry(i))
		}
		batch := q.DrainAll()
		q.Enqueue(entry(6))
		q.Enqueue(entry(7))

		evicted := q.Requeue(batch)
		s.Zero(evicted)
		s.Equal([]string{"e1", "e2", "e3", "e4", "e5", "e6", "e7"}, ids(q.DrainAll()))
	})

	s.Run("trims oldest of the batch when over capacity", func() {
		q := New(4)
		for i := 1; i <= 4; i++ {
			q.Enqueue(entry(i))
		}
		batch := q.DrainAll()
		q.Enqueue(entry(5))
		q.Enqueue(entry(6))

		evicted := q.Requeue(batch)
		s.Equal(2, evicted)
		s.Equal(int64(2), q.Dropped())
		s.Equal([]string{"e3", "e4", "e5", "e6"}, ids(q.DrainAll()))
	})

	s.Run("full queue drops the whole batch", func() {
		q := New(2)
		batch := []audit.PendingEntry{entry(1), entry(2)}
		q.Enqueue(entry(3))
		q.Enqueue(entry(4))

		s.Equal(2, q.Requeue(batch))
		s.Equal([]string{"e3", "e4"}, ids(q.DrainAll()))
	})

	s.Run("requeue into empty queue restores batch", func() {
		q := New(10)
		q.Enqueue(entry(1))
		q.Enqueue(entry(2))
		batch := q.DrainAll()
		q.Requeue(batch)
		s.Equal(2, q.Len())
		q.Enqueue(entry(3))
		s.Equal([]string{"e1", "e2", "e3"}, ids(q.DrainAll()))
	})
}
