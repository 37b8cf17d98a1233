package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventHubBroadcast(t *testing.T) {
	hub := NewEventHub()
	go hub.Run()
	defer hub.Stop()

	sub := &testSubscriber{ch: make(chan []byte, 8)}
	hub.Subscribe(sub)

	hub.Broadcast(Event{Type: EventItemStored, Key: "evt-1", Timestamp: time.Now()})

	select {
	case data := <-sub.ch:
		var event Event
		require.NoError(t, json.Unmarshal(data, &event))
		assert.Equal(t, EventItemStored, event.Type)
		assert.Equal(t, "evt-1", event.Key)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestEventHubDisconnectsSlowSubscriber(t *testing.T) {
	hub := NewEventHub()
	go hub.Run()
	defer hub.Stop()

	slow := &testSubscriber{ch: make(chan []byte)} // unbuffered, never read
	fast := &testSubscriber{ch: make(chan []byte, 8)}
	hub.Subscribe(slow)
	hub.Subscribe(fast)

	hub.Broadcast(Event{Type: EventItemDropped, Timestamp: time.Now()})

	select {
	case <-fast.ch:
	case <-time.After(time.Second):
		t.Fatal("fast subscriber did not receive event")
	}

	// The slow subscriber's channel was closed on disconnect.
	select {
	case _, open := <-slow.ch:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("slow subscriber channel not closed")
	}
}

func TestEventHubUnsubscribe(t *testing.T) {
	hub := NewEventHub()
	go hub.Run()
	defer hub.Stop()

	sub := &testSubscriber{ch: make(chan []byte, 8)}
	hub.Subscribe(sub)
	hub.Unsubscribe(sub)

	_, open := <-sub.ch
	assert.False(t, open)
}
