// Package events fans progress events out to per-job observers. Delivery is
// best-effort and at-most-once: an observer whose buffer is full loses the
// event rather than stalling the executor. The job store remains the
// authority on current state; a dropped event is recoverable by polling.
package events

import (
	"sync"

	"github.com/angelocurti/Agentic-Playlist-Generator/internal/model"
)

// DefaultBuffer is the per-subscription channel capacity used when the hub
// is constructed with a non-positive buffer size.
const DefaultBuffer = 16

// Subscription is one observer's view of a job's event stream. C is closed
// after the terminal event has been delivered (or dropped) or after
// Unsubscribe.
type Subscription struct {
	JobID string
	C     <-chan model.ProgressEvent

	ch     chan model.ProgressEvent
	closed bool
}

// Hub multiplexes progress events per job to attached subscribers.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe attaches an observer to a job id. The observer receives every
// event published from this point forward; historical events are not
// replayed.
func (h *Hub) Subscribe(jobID string) *Subscription {
	sub := &Subscription{
		JobID: jobID,
		ch:    make(chan model.ProgressEvent, h.buffer),
	}
	sub.C = sub.ch

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[*Subscription]struct{})
	}
	h.subs[jobID][sub] = struct{}{}
	return sub
}

// Unsubscribe detaches an observer. Idempotent and safe to call after the
// hub has already detached the observer on a terminal event.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detach(sub)
}

// detach removes and closes a subscription. Caller holds h.mu.
func (h *Hub) detach(sub *Subscription) {
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)
	if set, ok := h.subs[sub.JobID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.JobID)
		}
	}
}

// Publish delivers the event to every subscriber of its job without
// blocking; full buffers drop. After a terminal event every subscriber of
// that job is detached and its channel closed.
func (h *Hub) Publish(ev model.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[ev.JobID]
	if !ok {
		return
	}
	for sub := range set {
		select {
		case sub.ch <- ev:
		default:
			// Slow observer: drop rather than stall the producer.
		}
	}
	if ev.Terminal() {
		for sub := range set {
			h.detach(sub)
		}
	}
}

// SubscriberCount reports how many observers are attached to a job.
func (h *Hub) SubscriberCount(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[jobID])
}
