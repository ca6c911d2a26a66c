package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/drossix/shardmerge/core"
)

// newEchoPeer starts a WebSocket server whose reply for each received command
// body is produced by respond. A nil reply drops the message; the correlation
// id is echoed back automatically.
func newEchoPeer(t *testing.T, respond func(body []byte) []byte) string {
	t.Helper()

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			reply := respond([]byte(gjson.GetBytes(msg, "body").Raw))
			if reply == nil {
				continue
			}
			out, _ := sjson.SetBytes([]byte(`{}`), "id", gjson.GetBytes(msg, "id").String())
			out, _ = sjson.SetRawBytes(out, "body", reply)
			if err := c.WriteMessage(websocket.TextMessage, out); err != nil {
				return
			}
		}
	}))
	t.Cleanup(s.Close)

	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	p, err := New()
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func awaitReply(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
		return nil
	}
}

func TestPool_CommandRoundTrip(t *testing.T) {
	addr := newEchoPeer(t, func(body []byte) []byte {
		assert.Equal(t, int64(7), gjson.GetBytes(body, "getMore").Int())
		return []byte(`{"ok":true,"cursor":{"id":0,"ns":"db.coll","batch":[]}}`)
	})
	p := newTestPool(t)

	replies := make(chan []byte, 1)
	errs := make(chan error, 1)
	_, err := p.ScheduleRemoteCommand(context.Background(), addr, core.GetMore{CursorID: 7, Namespace: "db.coll"}.Encode(), func(reply []byte, err error) {
		replies <- reply
		errs <- err
	})
	require.NoError(t, err)

	require.NoError(t, awaitReply(t, errs))
	assert.True(t, gjson.GetBytes(<-replies, "ok").Bool())
}

func TestPool_ConnectionReusedAcrossCommands(t *testing.T) {
	addr := newEchoPeer(t, func([]byte) []byte {
		return []byte(`{"ok":true,"cursor":{"id":1,"ns":"db.coll","batch":[]}}`)
	})
	p := newTestPool(t)
	require.NoError(t, p.Connect(context.Background(), []string{addr}))

	for i := 0; i < 3; i++ {
		errs := make(chan error, 1)
		_, err := p.ScheduleRemoteCommand(context.Background(), addr, core.GetMore{CursorID: 1, Namespace: "db.coll"}.Encode(), func(_ []byte, err error) {
			errs <- err
		})
		require.NoError(t, err)
		require.NoError(t, awaitReply(t, errs))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Len(t, p.conns, 1)
}

func TestPool_CancelDeliversCallback(t *testing.T) {
	// The peer never answers, so only Cancel can complete the command.
	addr := newEchoPeer(t, func([]byte) []byte { return nil })
	p := newTestPool(t)

	errs := make(chan error, 1)
	handle, err := p.ScheduleRemoteCommand(context.Background(), addr, core.GetMore{CursorID: 3, Namespace: "db.coll"}.Encode(), func(_ []byte, err error) {
		errs <- err
	})
	require.NoError(t, err)

	p.Cancel(handle)
	assert.ErrorIs(t, awaitReply(t, errs), core.ErrCallbackCanceled)

	// A second cancel for the same handle must not re-invoke the callback.
	p.Cancel(handle)
	select {
	case err := <-errs:
		t.Fatalf("callback delivered twice: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPool_ConnectionLossFailsPending(t *testing.T) {
	// The server closes the connection after receiving the command, leaving
	// it forever unanswered.
	received := make(chan struct{}, 1)
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if _, _, err := c.ReadMessage(); err == nil {
			received <- struct{}{}
		}
		c.Close()
	}))
	defer s.Close()
	addr := "ws" + strings.TrimPrefix(s.URL, "http")

	p := newTestPool(t)

	errs := make(chan error, 1)
	_, err := p.ScheduleRemoteCommand(context.Background(), addr, core.GetMore{CursorID: 5, Namespace: "db.coll"}.Encode(), func(_ []byte, err error) {
		errs <- err
	})
	require.NoError(t, err)

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("peer never received the command")
	}

	err = awaitReply(t, errs)
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrCallbackCanceled)
	assert.Contains(t, err.Error(), "lost")
}

func TestPool_DialFailureFailsCommand(t *testing.T) {
	p := newTestPool(t)

	errs := make(chan error, 1)
	_, err := p.ScheduleRemoteCommand(context.Background(), "ws://127.0.0.1:1", []byte(`{}`), func(_ []byte, err error) {
		errs <- err
	})
	require.NoError(t, err)

	require.Error(t, awaitReply(t, errs))
}

func TestPool_CloseRejectsNewCommands(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	p.Close()

	_, err = p.ScheduleRemoteCommand(context.Background(), "ws://unused", []byte(`{}`), func([]byte, error) {})
	assert.Error(t, err)
}

func TestPool_CanceledContextFailsCommand(t *testing.T) {
	addr := newEchoPeer(t, func([]byte) []byte { return nil })
	p := newTestPool(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	errs := make(chan error, 1)
	_, err := p.ScheduleRemoteCommand(ctx, addr, []byte(`{}`), func(_ []byte, err error) {
		errs <- err
	})
	require.NoError(t, err)

	assert.True(t, errors.Is(awaitReply(t, errs), context.Canceled))
}
