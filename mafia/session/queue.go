package session

import (
	"context"
	"errors"
	"sync"

	"mafserver/mafia/game"
)

// ErrQueueClosed is returned by Get once the queue is closed and drained.
var ErrQueueClosed = errors.New("session: event queue closed")

// ErrNoSubscriber is returned when a name is not part of a fan-out group.
var ErrNoSubscriber = errors.New("session: no such subscriber")

// Queue is an unbounded FIFO event queue for one subscriber. Put never
// blocks; Get blocks until an event arrives, the context is canceled, or the
// queue is closed.
type Queue struct {
	mu     sync.Mutex
	events []game.Event
	ready  chan struct{}
	closed bool
}

func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Put appends an event. Events put after Close are dropped.
func (q *Queue) Put(ev game.Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.events = append(q.events, ev)
	q.mu.Unlock()
	q.wake()
}

// Get removes and returns the oldest event, blocking while the queue is
// empty.
func (q *Queue) Get(ctx context.Context) (game.Event, error) {
	for {
		q.mu.Lock()
		if len(q.events) > 0 {
			ev := q.events[0]
			q.events = q.events[1:]
			q.mu.Unlock()
			return ev, nil
		}
		if q.closed {
			q.mu.Unlock()
			return game.Event{}, ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return game.Event{}, ctx.Err()
		case <-q.ready:
		}
	}
}

// Close wakes any blocked Get. Already queued events may still be drained.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

func (q *Queue) wake() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Group fans events out to a fixed set of subscriber queues, one per name.
type Group struct {
	queues map[string]*Queue
}

func NewGroup(subscribers []string) *Group {
	g := &Group{queues: make(map[string]*Queue, len(subscribers))}
	for _, s := range subscribers {
		g.queues[s] = NewQueue()
	}
	return g
}

// Put delivers the event to every subscriber queue.
func (g *Group) Put(ev game.Event) {
	for _, q := range g.queues {
		q.Put(ev)
	}
}

// Queue returns the named subscriber's queue, or nil if absent.
func (g *Group) Queue(subscriber string) *Queue {
	return g.queues[subscriber]
}

// Close closes every subscriber queue.
func (g *Group) Close() {
	for _, q := range g.queues {
		q.Close()
	}
}
