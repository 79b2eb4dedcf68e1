package diag

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cryguy/jsbridge/internal/core"
)

func testMessage() *core.Message {
	return &core.Message{
		Text:       "Uncaught Error: boom",
		ScriptName: "main.js",
		Line:       3,
		Column:     7,
		SourceLine: "  throw new Error('boom');",
		Frames:     []core.StackFrame{{Line: 3, Column: 7, ScriptName: "main.js", FunctionName: "run"}},
	}
}

func TestLogSink(t *testing.T) {
	zc, logs := observer.New(zap.DebugLevel)
	sink := NewLogSink(zap.New(zc))
	sink(testMessage())
	sink(nil)

	entries := logs.All()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "Uncaught Error: boom", e.Message)
	fields := e.ContextMap()
	assert.Equal(t, "main.js", fields["script"])
	assert.Equal(t, int64(3), fields["line"])
	assert.Contains(t, fields["stack"], "at run (main.js:3:7)")
}

func TestBroadcasterDelivers(t *testing.T) {
	b := NewBroadcaster()
	srv := httptest.NewServer(b)
	defer srv.Close()
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return b.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	b.Publish(testMessage())

	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)

	var got core.Message
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, *testMessage(), got)
}

func TestBroadcasterClose(t *testing.T) {
	b := NewBroadcaster()
	srv := httptest.NewServer(b)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return b.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	b.Close()

	_, _, err = conn.Read(ctx)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
	require.Eventually(t, func() bool { return b.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)

	b.Publish(testMessage()) // no clients, no panic
}
