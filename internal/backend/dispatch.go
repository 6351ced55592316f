package backend

import (
	"sync"

	"github.com/starford/othala/internal/apperr"
)

// dispatcher fans committed events out to subscribers. Each subscriber gets
// its own goroutine draining an unbounded queue, so a slow consumer delays
// only itself and nothing is ever dropped while the subscription is alive.
// The store serializes publish calls in commit order, which keeps every
// queue a gap-free FIFO by seq.
type dispatcher struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
	closed bool
}

func newDispatcher() *dispatcher {
	return &dispatcher{subs: make(map[int]*subscriber)}
}

func (d *dispatcher) subscribe() (<-chan Event, func(), error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, nil, apperr.ErrClosed
	}
	id := d.nextID
	d.nextID++
	sub := &subscriber{
		out:  make(chan Event),
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
	d.subs[id] = sub
	go sub.run()
	cancel := func() { d.remove(id) }
	return sub.out, cancel, nil
}

func (d *dispatcher) remove(id int) {
	d.mu.Lock()
	sub, ok := d.subs[id]
	delete(d.subs, id)
	d.mu.Unlock()
	if ok {
		sub.stop()
	}
}

func (d *dispatcher) publish(ev Event) {
	d.mu.Lock()
	subs := make([]*subscriber, 0, len(d.subs))
	for _, s := range d.subs {
		subs = append(subs, s)
	}
	d.mu.Unlock()
	for _, s := range subs {
		s.publish(ev)
	}
}

func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	subs := make([]*subscriber, 0, len(d.subs))
	for _, s := range d.subs {
		subs = append(subs, s)
	}
	d.subs = make(map[int]*subscriber)
	d.mu.Unlock()
	for _, s := range subs {
		s.stop()
	}
}

type subscriber struct {
	out  chan Event
	wake chan struct{}
	quit chan struct{}

	mu       sync.Mutex
	buf      []Event
	stopOnce sync.Once
}

func (s *subscriber) publish(ev Event) {
	s.mu.Lock()
	s.buf = append(s.buf, ev)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) stop() {
	s.stopOnce.Do(func() { close(s.quit) })
}

func (s *subscriber) run() {
	defer close(s.out)
	for {
		s.mu.Lock()
		batch := s.buf
		s.buf = nil
		s.mu.Unlock()

		if len(batch) == 0 {
			select {
			case <-s.wake:
				continue
			case <-s.quit:
				return
			}
		}
		for _, ev := range batch {
			select {
			case s.out <- ev:
			case <-s.quit:
				return
			}
		}
	}
}
