// Package events carries scan lifecycle notifications from the daemon
// to any number of stream subscribers.
package events

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// subscriberBuffer sizes each subscriber channel. A short scan emits a
// handful of phase and progress events, so a subscriber that drains at
// all keeps up; one that stalls loses events instead of stalling the
// run.
const subscriberBuffer = 16

type EventHub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewEventHub() *EventHub { return &EventHub{subs: make(map[chan Event]struct{})} }

// Subscribe registers a new stream. The caller must Unsubscribe when
// done or the channel leaks.
func (h *EventHub) Subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a stream and closes its channel.
func (h *EventHub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Publish marshals the payload and fans it out. Sends never block: a
// full subscriber drops the event, so a stuck stream reader cannot
// hold up the scan that is publishing.
func (h *EventHub) Publish(name string, payload any) {
	if h == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).Errorf("failed to encode %s event", name)
		return
	}
	msg := Event{Name: name, Data: b}
	h.mu.RLock()
	for ch := range h.subs {
		select {
		case ch <- msg:
		default:
			logrus.Debugf("subscriber full, dropping %s event", name)
		}
	}
	h.mu.RUnlock()
}
