package notify

import "example.com/activityfeed/internal/domain"

// Queue is an unbounded FIFO buffer of realtime events. It is not safe for concurrent use;
// the Scheduler guards it with its own lock.
type Queue struct {
	items []domain.ActivityEvent
}

// Push appends ev to the tail.
func (q *Queue) Push(ev domain.ActivityEvent) {
	q.items = append(q.items, ev)
}

// Pop removes and returns the oldest event.
func (q *Queue) Pop() (domain.ActivityEvent, bool) {
	if len(q.items) == 0 {
		return domain.ActivityEvent{}, false
	}
	ev := q.items[0]
	q.items[0] = domain.ActivityEvent{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return ev, true
}

// Len returns the number of buffered events.
func (q *Queue) Len() int {
	return len(q.items)
}

// Clear drops every buffered event and returns how many were dropped.
func (q *Queue) Clear() int {
	n := len(q.items)
	q.items = nil
	return n
}
