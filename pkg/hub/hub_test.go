package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-lingua/internal/log"
)

// fakeConn is an in-memory Conn.
type fakeConn struct {
	mu      sync.Mutex
	written [][]byte
	types   []int
	inbound chan []byte
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 8), closed: make(chan struct{})}
}

func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.inbound:
		return websocket.TextMessage, data, nil
	case <-f.closed:
		return 0, nil, errors.New("closed")
	}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, messageType)
	f.written = append(f.written, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) messages(kind int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for i, d := range f.written {
		if f.types[i] == kind {
			out = append(out, string(d))
		}
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestHub_Broadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New("test", WithLogger(log.Discard()))
	go h.Run(ctx)
	waitFor(t, h.IsRunning)

	a, b := newFakeConn(), newFakeConn()
	ca := NewClient(h, a, nil)
	cb := NewClient(h, b, nil)
	go ca.Run()
	go cb.Run()
	waitFor(t, func() bool { return h.ClientCount() == 2 })

	if err := h.BroadcastJSON(map[string]int{"n": 1}); err != nil {
		t.Fatalf("BroadcastJSON() error = %v", err)
	}
	h.Broadcast(NewBinaryMessage([]byte{1, 2, 3}))

	for _, conn := range []*fakeConn{a, b} {
		conn := conn
		waitFor(t, func() bool {
			return len(conn.messages(websocket.TextMessage)) == 1 && len(conn.messages(websocket.BinaryMessage)) == 1
		})
		if got := conn.messages(websocket.TextMessage)[0]; got != `{"n":1}` {
			t.Errorf("text frame = %s", got)
		}
	}

	a.Close()
	waitFor(t, func() bool { return h.ClientCount() == 1 })
}

func TestHub_ClientMessagesAndSend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New("test", WithLogger(log.Discard()))
	go h.Run(ctx)

	received := make(chan string, 1)
	conn := newFakeConn()
	c := NewClient(h, conn, func(c *Client, data []byte) {
		received <- string(data)
		c.Send(NewJSONMessage([]byte(`"ack"`)))
	})
	go c.Run()

	if !c.Send(NewJSONMessage([]byte(`"hello"`))) {
		t.Fatal("Send() should queue")
	}
	conn.inbound <- []byte(`{"type":"command"}`)

	select {
	case got := <-received:
		if got != `{"type":"command"}` {
			t.Errorf("received %s", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("onMessage not called")
	}

	waitFor(t, func() bool { return len(conn.messages(websocket.TextMessage)) == 2 })
	msgs := conn.messages(websocket.TextMessage)
	if msgs[0] != `"hello"` || msgs[1] != `"ack"` {
		t.Errorf("messages = %v", msgs)
	}
}

func TestHub_Stop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New("test", WithLogger(log.Discard()))

	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	conn := newFakeConn()
	c := NewClient(h, conn, nil)
	go c.Run()
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	cancel()
	<-stopped

	if h.IsRunning() {
		t.Error("hub should not be running")
	}
	if h.Broadcast(NewJSONMessage([]byte("{}"))) {
		t.Error("Broadcast after stop should report false")
	}
	if NewClient(h, newFakeConn(), nil) != nil {
		t.Error("NewClient after stop should return nil")
	}
	waitFor(t, func() bool { return len(conn.messages(websocket.CloseMessage)) == 1 })
}

func TestClient_SendAfterDrop(t *testing.T) {
	t.Run("hub stopped", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		h := New("test", WithLogger(log.Discard()))
		stopped := make(chan struct{})
		go func() {
			h.Run(ctx)
			close(stopped)
		}()

		c := NewClient(h, newFakeConn(), nil)
		waitFor(t, func() bool { return h.ClientCount() == 1 })
		cancel()
		<-stopped

		if c.Send(NewJSONMessage([]byte("{}"))) {
			t.Error("Send after stop should report false")
		}
	})

	t.Run("client disconnected", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		h := New("test", WithLogger(log.Discard()))
		go h.Run(ctx)

		conn := newFakeConn()
		c := NewClient(h, conn, nil)
		done := make(chan struct{})
		go func() {
			c.Run()
			close(done)
		}()
		waitFor(t, func() bool { return h.ClientCount() == 1 })

		conn.Close()
		<-done
		waitFor(t, func() bool { return h.ClientCount() == 0 })

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if c.Send(NewJSONMessage([]byte("{}"))) {
					t.Error("Send to dropped client should report false")
				}
			}()
		}
		wg.Wait()
	})

	t.Run("before registration completes", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		h := New("test", WithLogger(log.Discard()))
		go h.Run(ctx)

		c := NewClient(h, newFakeConn(), nil)
		if !c.Send(NewJSONMessage([]byte(`"snapshot"`))) {
			t.Error("Send right after NewClient should queue")
		}
	})
}
