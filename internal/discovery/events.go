package discovery

import (
	"sync"

	"github.com/google/uuid"

	"github.com/tr1v3r/rctl/internal/upnp"
)

type EventType int

const (
	Available EventType = iota
	Gone
)

func (t EventType) String() string {
	if t == Available {
		return "available"
	}
	return "gone"
}

// Event reports a device transition.
type Event struct {
	Type   EventType
	USN    string
	Device *upnp.Device
}

// Subscription receives every event published after it was created, in
// publication order. Delivery never blocks the engine.
type Subscription struct {
	ID string

	engine *Engine
	out    chan Event
	notify chan struct{}
	done   chan struct{}
	once   sync.Once

	mu    sync.Mutex
	queue []Event
}

// Subscribe registers a new subscriber.
func (e *Engine) Subscribe() *Subscription {
	s := &Subscription{
		ID:     uuid.NewString(),
		engine: e,
		out:    make(chan Event),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	e.mu.Lock()
	e.subs[s.ID] = s
	e.mu.Unlock()

	go s.pump()
	return s
}

// Events is closed once the subscription is cancelled.
func (s *Subscription) Events() <-chan Event { return s.out }

// Cancel unregisters the subscription. Undelivered events are discarded.
func (s *Subscription) Cancel() {
	s.engine.mu.Lock()
	delete(s.engine.subs, s.ID)
	s.engine.mu.Unlock()
	s.stop()
}

func (s *Subscription) stop() { s.once.Do(func() { close(s.done) }) }

func (s *Subscription) push(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}

// publish fans ev out to every subscriber. Caller holds e.mu.
func (e *Engine) publish(ev Event) {
	for _, s := range e.subs {
		s.push(ev)
	}
}
