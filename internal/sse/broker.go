// Package sse streams workspace change notifications to browsers as
// Server-Sent Events.
package sse

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Event types published by the workspace.
const (
	TypeProjectCreated     = "project.created"
	TypeProjectUpdated     = "project.updated"
	TypeProjectDeleted     = "project.deleted"
	TypeProjectsChanged    = "projects.changed"
	TypeGenerationFinished = "generation.finished"
	TypeHistoryChanged     = "history.changed"
)

// projectKinds maps catalog change kinds to event types.
var projectKinds = map[string]string{
	"created": TypeProjectCreated,
	"updated": TypeProjectUpdated,
	"deleted": TypeProjectDeleted,
}

const (
	keepAlive    = 25 * time.Second
	retryMillis  = 3000
	clientBuffer = 64
)

// Event is one notification. Data is encoded as JSON.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// hub is the state owned by the broker loop.
type hub struct {
	clients  map[chan []byte]struct{}
	seq      uint64
	lastList time.Time
	listMin  time.Duration
}

// send frames ev with the next sequence number and fans it out. Slow
// clients whose buffer is full miss the frame.
func (h *hub) send(ev Event) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return
	}
	h.seq++
	var frame bytes.Buffer
	frame.WriteString("id: " + strconv.FormatUint(h.seq, 10) + "\n")
	frame.WriteString("event: " + ev.Type + "\n")
	frame.WriteString("data: ")
	frame.Write(payload)
	frame.WriteString("\n\n")
	raw := frame.Bytes()
	for ch := range h.clients {
		select {
		case ch <- raw:
		default:
		}
	}
}

// Broker fans events out to connected clients. A single goroutine owns the
// hub; every public method submits a closure to it.
type Broker struct {
	cmds     chan func(*hub)
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewBroker starts a broker. projects.changed is emitted at most once per
// listThrottle.
func NewBroker(listThrottle time.Duration) *Broker {
	if listThrottle <= 0 {
		listThrottle = 2 * time.Second
	}
	b := &Broker{
		cmds: make(chan func(*hub), 256),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go b.loop(&hub{clients: map[chan []byte]struct{}{}, listMin: listThrottle})
	return b
}

func (b *Broker) loop(h *hub) {
	defer close(b.done)
	for {
		select {
		case <-b.quit:
			for ch := range h.clients {
				close(ch)
			}
			return
		case cmd := <-b.cmds:
			cmd(h)
		}
	}
}

// do hands cmd to the loop. It reports false once the broker is closed.
func (b *Broker) do(cmd func(*hub)) bool {
	select {
	case <-b.quit:
		return false
	default:
	}
	select {
	case b.cmds <- cmd:
		return true
	case <-b.done:
		return false
	}
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	b.stopOnce.Do(func() { close(b.quit) })
	<-b.done
}

// Subscribe registers a client. The channel is closed by cancel or by Close.
func (b *Broker) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, clientBuffer)
	added := make(chan struct{})
	if !b.do(func(h *hub) {
		h.clients[ch] = struct{}{}
		close(added)
	}) {
		close(ch)
		return ch, func() {}
	}
	select {
	case <-added:
	case <-b.done:
		select {
		case <-added:
		default:
			close(ch)
		}
	}
	cancel := func() {
		b.do(func(h *hub) {
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	resp := make(chan int, 1)
	if !b.do(func(h *hub) { resp <- len(h.clients) }) {
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.done:
		return 0
	}
}

// Publish broadcasts ev.
func (b *Broker) Publish(ev Event) {
	b.do(func(h *hub) { h.send(ev) })
}

// PublishProjectEvent broadcasts a project change of the given kind
// ("created", "updated" or "deleted") followed by a throttled
// projects.changed. Other kinds are ignored.
func (b *Broker) PublishProjectEvent(kind, name string) {
	typ, ok := projectKinds[kind]
	if !ok {
		return
	}
	b.do(func(h *hub) {
		h.send(Event{Type: typ, Data: map[string]string{"project": name}})
		if now := time.Now(); now.Sub(h.lastList) >= h.listMin {
			h.lastList = now
			h.send(Event{Type: TypeProjectsChanged, Data: map[string]string{}})
		}
	})
}

// ServeHTTP streams events until the client goes away (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ch, cancel := b.Subscribe()
	defer cancel()

	_, _ = w.Write([]byte("retry: " + strconv.Itoa(retryMillis) + "\n\n"))
	flusher.Flush()

	ping := time.NewTicker(keepAlive)
	defer ping.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
		case frame, open := <-ch:
			if !open {
				return
			}
			_, _ = w.Write(frame)
		}
		flusher.Flush()
	}
}
