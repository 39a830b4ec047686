package events

import (
	"testing"
	"time"
)

func recvEvent(t *testing.T, ch chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHubPublishSubscribe(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	h.Publish(ScanProgress, ScanProgressEvent{
		RunID:     "run-1",
		Phase:     "Projection",
		Collected: 10,
		Total:     761,
	})

	ev := recvEvent(t, ch)
	if ev.Name != ScanProgress {
		t.Errorf("Name = %s, want %s", ev.Name, ScanProgress)
	}

	payload, err := DecodeAs[ScanProgressEvent](ev)
	if err != nil {
		t.Fatalf("DecodeAs failed: %v", err)
	}
	if payload.RunID != "run-1" || payload.Collected != 10 || payload.Total != 761 {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestHubMultipleSubscribers(t *testing.T) {
	h := NewEventHub()
	a := h.Subscribe()
	b := h.Subscribe()
	defer h.Unsubscribe(a)
	defer h.Unsubscribe(b)

	h.Publish(ScanPhase, ScanPhaseEvent{RunID: "run-2", From: "Begin", To: "Projection"})

	for _, ch := range []chan Event{a, b} {
		ev := recvEvent(t, ch)
		if ev.Name != ScanPhase {
			t.Errorf("Name = %s, want %s", ev.Name, ScanPhase)
		}
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()

	h.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Unsubscribe")
	}

	// A second Unsubscribe must not panic on the closed channel.
	h.Unsubscribe(ch)

	// Publishing after unsubscribe must not send to the closed channel.
	h.Publish(ScanFinished, ScanFinishedEvent{RunID: "run-3", Status: "completed"})
}

func TestHubSlowSubscriberDropsEvents(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	// Fill the buffer without draining; the extra publishes must not block.
	for i := 0; i < 32; i++ {
		h.Publish(ScanProgress, ScanProgressEvent{Collected: i})
	}

	if got := len(ch); got != cap(ch) {
		t.Errorf("buffered events = %d, want %d", got, cap(ch))
	}
}

func TestHubNilPublish(t *testing.T) {
	var h *EventHub
	h.Publish(ScanPhase, nil) // must not panic
}

func TestDecodeAsEmptyData(t *testing.T) {
	payload, err := DecodeAs[ScanFinishedEvent](Event{Name: ScanFinished})
	if err != nil {
		t.Fatalf("DecodeAs failed: %v", err)
	}
	if payload.RunID != "" || payload.Status != "" {
		t.Errorf("expected zero payload, got %+v", payload)
	}
}
