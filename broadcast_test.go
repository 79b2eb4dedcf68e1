package jsbridge

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
)

func TestMessagesBroadcast(t *testing.T) {
	b := NewBroadcaster()
	srv := httptest.NewServer(b)
	defer srv.Close()
	defer b.Close()

	iso, ctx := newTestContext(t)
	iso.AddMessageListener(b.Publish)

	dialCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.CloseNow()
	require.Eventually(t, func() bool { return b.Clients() == 1 }, 5*time.Second, 10*time.Millisecond)

	_, err = ctx.Eval("remote.js", "throw new TypeError('seen remotely')")
	require.Error(t, err)

	_, data, err := conn.Read(dialCtx)
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "Uncaught TypeError: seen remotely", msg.Text)
	assert.Equal(t, "remote.js", msg.ScriptName)
}
