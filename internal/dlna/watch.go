package dlna

import (
	"context"
	"sync"
	"time"
)

// Status is one poll of a renderer.
type Status struct {
	State    TransportState
	Position *Position
	Err      error
}

type poller struct {
	cancel   context.CancelFunc
	watchers map[uint64]chan Status
}

// Watch polls the renderer every PollInterval while at least one watcher
// is registered. Slow watchers miss intermediate polls. The returned func
// unregisters the watcher and closes its channel.
func (r *MediaRenderer) Watch() (<-chan Status, func()) {
	r.pollMu.Lock()
	defer r.pollMu.Unlock()

	if r.poll == nil {
		ctx, cancel := context.WithCancel(context.Background())
		r.poll = &poller{cancel: cancel, watchers: make(map[uint64]chan Status)}
		go r.run(ctx, r.poll)
	}

	r.nextID++
	id := r.nextID
	ch := make(chan Status, 1)
	r.poll.watchers[id] = ch

	var once sync.Once
	return ch, func() { once.Do(func() { r.unwatch(id) }) }
}

func (r *MediaRenderer) unwatch(id uint64) {
	r.pollMu.Lock()
	defer r.pollMu.Unlock()

	p := r.poll
	if p == nil {
		return
	}
	if ch, ok := p.watchers[id]; ok {
		delete(p.watchers, id)
		close(ch)
	}
	if len(p.watchers) == 0 {
		p.cancel()
		r.poll = nil
	}
}

func (r *MediaRenderer) run(ctx context.Context, p *poller) {
	interval := r.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		st := r.status(ctx)
		if ctx.Err() != nil {
			return
		}

		r.pollMu.Lock()
		for _, ch := range p.watchers {
			select {
			case ch <- st:
			default:
			}
		}
		r.pollMu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *MediaRenderer) status(ctx context.Context) Status {
	state, err := r.GetCurrentState(ctx)
	if err != nil {
		return Status{Err: err}
	}
	pos, err := r.GetCurrentPosition(ctx)
	if err != nil {
		return Status{State: state, Err: err}
	}
	return Status{State: state, Position: pos}
}
