package server

import (
	"context"
	"testing"
	"time"

	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/models"
)

func TestRealtimeDispatcherPublishesToSubscriber(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx, "user-1")
	defer cleanup()

	dispatcher.Publish(models.Notification{
		ID:     "n-1",
		UserID: "user-1",
		Type:   models.NotificationPatchNote,
		Title:  "1.2.0 released",
	})

	select {
	case received := <-stream:
		if received.EventType != RealtimeEventNotification {
			t.Fatalf("expected event type %s, got %s", RealtimeEventNotification, received.EventType)
		}
		if received.Notification.ID != "n-1" {
			t.Fatalf("unexpected notification %+v", received.Notification)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected realtime message within deadline")
	}
}

func TestRealtimeDispatcherIsolatedByUser(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	userStream, cleanup := dispatcher.Subscribe(ctx, "user-2")
	defer cleanup()
	otherStream, otherCleanup := dispatcher.Subscribe(ctx, "user-3")
	defer otherCleanup()

	dispatcher.Publish(models.Notification{ID: "n-2", UserID: "user-3"})

	select {
	case <-userStream:
		t.Fatal("did not expect realtime message for unrelated user")
	case <-time.After(200 * time.Millisecond):
	}

	select {
	case msg := <-otherStream:
		if msg.UserID != "user-3" {
			t.Fatalf("expected user-3, received %s", msg.UserID)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected realtime message for subscribed user")
	}
}

func TestRealtimeDispatcherDropsCanceledSubscribers(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())

	_, cleanup := dispatcher.Subscribe(ctx, "user-4")
	if dispatcher.Subscribers("user-4") != 1 {
		t.Fatalf("expected one subscriber")
	}
	cancel()
	cleanup()
	if dispatcher.Subscribers("user-4") != 0 {
		t.Fatalf("expected subscriber removed after cancel")
	}
}

func TestRealtimeDispatcherDoesNotBlockOnFullBuffer(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx, "user-5")
	defer cleanup()

	done := make(chan struct{})
	go func() {
		for i := 0; i < dispatcher.bufferSize*4; i++ {
			dispatcher.Publish(models.Notification{UserID: "user-5"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	if len(stream) != dispatcher.bufferSize {
		t.Fatalf("expected a full buffer of %d, got %d", dispatcher.bufferSize, len(stream))
	}
}
