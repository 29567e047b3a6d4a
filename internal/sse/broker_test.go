package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "draft.saved", Data: map[string]string{"article_id": "a1"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: draft.saved") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"article_id":"a1"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishDraftEvent_ListThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First event should trigger drafts.updated.
	b.PublishDraftEvent("saved", "a1")
	// Second event immediately should NOT trigger another drafts.updated.
	b.PublishDraftEvent("synced", "a2")

	// Drain and count events.
	time.Sleep(50 * time.Millisecond)
	listCount := 0
	draftCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, "drafts.updated") {
				listCount++
			} else {
				draftCount++
			}
		default:
			break loop
		}
	}

	if draftCount != 2 {
		t.Errorf("draft events = %d, want 2", draftCount)
	}
	if listCount != 1 {
		t.Errorf("list events = %d, want 1 (throttled)", listCount)
	}
}

func TestPublishDraftEvent_Kinds(t *testing.T) {
	b := NewBroker(time.Hour) // suppress drafts.updated noise after the first
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	kinds := map[string]string{
		"saved":     "draft.saved",
		"synced":    "draft.synced",
		"submitted": "draft.submitted",
		"cleared":   "draft.cleared",
		"applied":   "content.applied",
	}
	for kind := range kinds {
		b.PublishDraftEvent(kind, "a1")
	}

	time.Sleep(50 * time.Millisecond)
	var got []string
drain:
	for {
		select {
		case msg := <-ch:
			got = append(got, string(msg))
		default:
			break drain
		}
	}

	for _, event := range kinds {
		found := false
		for _, s := range got {
			if strings.Contains(s, "event: "+event) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing event %q in output", event)
		}
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: "draft.synced", Data: map[string]string{"article_id": "x"}})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: draft.synced") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: "draft.saved", Data: map[string]string{"article_id": "x"}})
	b.PublishDraftEvent("saved", "x")
}
