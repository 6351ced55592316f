// Package sse implements a Server-Sent Events broker that streams bookmark
// tree changes to connected clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/othala/internal/bookmarks"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + rollup throttle timestamp). Public methods communicate with this loop
// through channels, so no mutexes are required.
type Broker struct {
	rollupMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	signalCh      chan bookmarks.Signal
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given tree.changed throttle
// interval.
func NewBroker(rollupThrottle time.Duration) *Broker {
	if rollupThrottle <= 0 {
		rollupThrottle = 2 * time.Second
	}

	b := &Broker{
		rollupMin:     rollupThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		signalCh:      make(chan bookmarks.Signal, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastRollup time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		msg := fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)
		raw := []byte(msg)

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case sig := <-b.signalCh:
			if sig.Op == bookmarks.SignalReset {
				// A reload invalidates everything clients hold, so the
				// rollup goes out immediately.
				lastRollup = time.Now()
				broadcast(Event{Type: "tree.changed", Data: map[string]string{}})
				continue
			}
			switch sig.Op {
			case bookmarks.SignalInsert:
				broadcast(Event{Type: "node.created", Data: sig.Node})
			case bookmarks.SignalUpdate:
				broadcast(Event{Type: "node.updated", Data: sig.Node})
			case bookmarks.SignalDelete:
				broadcast(Event{Type: "node.deleted", Data: map[string]string{"id": string(sig.ID)}})
			}

			now := time.Now()
			if now.Sub(lastRollup) >= b.rollupMin {
				lastRollup = now
				broadcast(Event{Type: "tree.changed", Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishSignal maps one model change signal onto the wire: inserts become
// node.created, updates node.updated, deletes node.deleted, and a reset
// becomes an immediate tree.changed. Node events additionally feed the
// throttled tree.changed rollup. Safe to register directly as an OnSignal
// callback; the mapping happens on the broker loop, not the caller.
func (b *Broker) PublishSignal(sig bookmarks.Signal) {
	if b.closed.Load() {
		return
	}
	select {
	case b.signalCh <- sig:
	case <-b.stopped:
	}
}

// PublishStashRoot publishes the resolved stash root cell as a
// stashroot.updated event.
func (b *Broker) PublishStashRoot(st bookmarks.StashRootState) {
	b.Publish(Event{Type: "stashroot.updated", Data: stashRootPayload{
		Root:      st.Root,
		Ambiguous: st.Ambiguous,
	}})
}

type stashRootPayload struct {
	Root      *bookmarks.Node `json:"root"`
	Ambiguous bool            `json:"ambiguous"`
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
