// Package realtime fans engine events out to live subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"achievekit/core"
)

type subscriber struct {
	ch   chan core.Event
	save core.SaveID // empty means all saves
}

// Hub is a simple pub/sub for broadcasting events to channels. A subscriber
// may restrict itself to a single save slot.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

func NewHub() *Hub { return &Hub{subs: map[int]subscriber{}} }

// Subscribe registers a listener for every event. Buffer bounds the channel;
// slow consumers drop events rather than block the engine.
func (h *Hub) Subscribe(buffer int) (int, <-chan core.Event) {
	return h.subscribe(buffer, "")
}

// SubscribeSave registers a listener for one save slot's events only.
func (h *Hub) SubscribeSave(buffer int, save core.SaveID) (int, <-chan core.Event) {
	return h.subscribe(buffer, save)
}

func (h *Hub) subscribe(buffer int, save core.SaveID) (int, <-chan core.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	ch := make(chan core.Event, buffer)
	h.subs[id] = subscriber{ch: ch, save: save}
	return id, ch
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
}

func (h *Hub) Broadcast(_ context.Context, ev core.Event) {
	h.mu.RLock()
	// copy to avoid holding lock during send
	receivers := make([]chan core.Event, 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.save != "" && sub.save != ev.Save {
			continue
		}
		receivers = append(receivers, sub.ch)
	}
	h.mu.RUnlock()
	for _, ch := range receivers {
		select {
		case ch <- ev:
		default: /* drop if full */
		}
	}
}

// MarshalJSON is a helper to convert events to JSON bytes for WebSocket/SSE.
func MarshalJSON(ev core.Event) []byte {
	b, _ := json.Marshal(ev)
	return b
}
