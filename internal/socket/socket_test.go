package socket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bragi-editor/bragi/internal/draftservice"
	"github.com/bragi-editor/bragi/internal/editor"
	"github.com/bragi-editor/bragi/internal/testutil"
)

func testSocket(t *testing.T) (*draftservice.Service, *httptest.Server) {
	t.Helper()
	_, store := testutil.TestCache(t)
	db := testutil.TestDB(t)

	svc := draftservice.NewService(store, db, nil, nil, draftservice.Config{
		LocalDelay:  10 * time.Millisecond,
		RemoteDelay: 20 * time.Millisecond,
	})
	t.Cleanup(svc.Close)

	srv := httptest.NewServer(NewHandler(svc, nil))
	t.Cleanup(srv.Close)
	return svc, srv
}

func dial(t *testing.T, srv *httptest.Server, articleID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?articleId=" + articleID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg WSMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return msg
}

func TestConnectSendsInitialContent(t *testing.T) {
	_, srv := testSocket(t)
	conn := dial(t, srv, "a1")

	msg := readMessage(t, conn)
	if msg.Type != TypeUpdate {
		t.Fatalf("type = %q, want %q", msg.Type, TypeUpdate)
	}
	if msg.ArticleID != "a1" {
		t.Errorf("article id = %q", msg.ArticleID)
	}
	if !strings.Contains(string(msg.Payload), `"type":"doc"`) {
		t.Errorf("payload = %s", msg.Payload)
	}
}

func TestMissingArticleIDRejected(t *testing.T) {
	_, srv := testSocket(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial without articleId should fail")
	}
	if resp == nil || resp.StatusCode != 400 {
		t.Errorf("expected 400 handshake response, got %+v", resp)
	}
}

func TestUpdateReachesService(t *testing.T) {
	svc, srv := testSocket(t)
	conn := dial(t, srv, "a1")
	_ = readMessage(t, conn) // initial content

	content := json.RawMessage(`{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"typed over socket"}]}]}`)
	err := conn.WriteJSON(WSMessage{Type: TypeUpdate, ArticleID: "a1", Payload: content})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		detail, err := svc.GetDraft(context.Background(), "a1")
		if err == nil && detail.Title == "typed over socket" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("update never reached the editor session")
}

func TestInvalidContentGetsErrorReply(t *testing.T) {
	_, srv := testSocket(t)
	conn := dial(t, srv, "a1")
	_ = readMessage(t, conn) // initial content

	err := conn.WriteJSON(WSMessage{Type: TypeUpdate, ArticleID: "a1", Payload: json.RawMessage(`{"type":"paragraph"}`)})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	msg := readMessage(t, conn)
	if msg.Type != TypeError {
		t.Fatalf("type = %q, want %q", msg.Type, TypeError)
	}
	if msg.Error == "" {
		t.Error("empty error text")
	}
}

func TestUnknownTypeGetsErrorReply(t *testing.T) {
	_, srv := testSocket(t)
	conn := dial(t, srv, "a1")
	_ = readMessage(t, conn)

	_ = conn.WriteJSON(WSMessage{Type: "NOPE", ArticleID: "a1"})
	msg := readMessage(t, conn)
	if msg.Type != TypeError {
		t.Fatalf("type = %q, want %q", msg.Type, TypeError)
	}
}

func TestLateApplyAfterTeardownIsDropped(t *testing.T) {
	// An apply listener is collected under the session lock before
	// unsubscribe returns, so it can still fire after the connection
	// tore down. Enqueue must drop the message, not panic.
	c := &client{
		send:      make(chan []byte, sendBuffer),
		logger:    slog.Default(),
		articleID: "a1",
	}
	session := editor.NewSession("a1")
	apply := func(content json.RawMessage) {
		c.enqueue(WSMessage{Type: TypeUpdate, ArticleID: "a1", Payload: content})
	}
	unsubscribe := session.OnApply(apply)

	unsubscribe()
	c.closeSend()

	// The listener invocation that raced the teardown.
	apply(json.RawMessage(`{"type":"doc","content":[]}`))

	if _, ok := <-c.send; ok {
		t.Error("message enqueued after close")
	}
	// Repeated teardown must stay a no-op.
	c.closeSend()
}

func TestDisconnectRacingClear(t *testing.T) {
	svc, srv := testSocket(t)

	content := json.RawMessage(`{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"racing"}]}]}`)
	for i := 0; i < 20; i++ {
		conn := dial(t, srv, "a1")
		_ = readMessage(t, conn) // initial content
		_ = conn.WriteJSON(WSMessage{Type: TypeUpdate, ArticleID: "a1", Payload: content})

		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = svc.Clear(context.Background(), "a1")
		}()
		conn.Close()
		<-done
	}
	// Reaching here without a send-on-closed-channel panic in the
	// coordinator loop is the assertion.
}

func TestClearPushesEmptyContentToClient(t *testing.T) {
	svc, srv := testSocket(t)
	conn := dial(t, srv, "a1")
	_ = readMessage(t, conn)

	content := json.RawMessage(`{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"to clear"}]}]}`)
	_ = conn.WriteJSON(WSMessage{Type: TypeUpdate, ArticleID: "a1", Payload: content})

	// Wait until the edit lands, then clear server-side.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		detail, err := svc.GetDraft(context.Background(), "a1")
		if err == nil && detail.Title == "to clear" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := svc.Clear(context.Background(), "a1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	msg := readMessage(t, conn)
	if msg.Type != TypeUpdate {
		t.Fatalf("type = %q, want %q", msg.Type, TypeUpdate)
	}
	if strings.Contains(string(msg.Payload), "to clear") {
		t.Errorf("payload still has cleared text: %s", msg.Payload)
	}
}
