package jsbridge

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	if err := Initialize(); err != nil {
		fmt.Fprintln(os.Stderr, "initialize:", err)
		os.Exit(1)
	}
	code := m.Run()
	Dispose()
	os.Exit(code)
}

// newTestContext returns an isolate and context torn down with the test.
func newTestContext(t *testing.T, opts ...IsolateOption) (*Isolate, *Context) {
	t.Helper()
	iso, err := NewIsolate(append([]IsolateOption{WithName(t.Name())}, opts...)...)
	require.NoError(t, err)
	ctx, err := iso.NewContext()
	require.NoError(t, err)
	iso.AddMessageListener(LogMessages(zaptest.NewLogger(t)))
	t.Cleanup(iso.Dispose)
	return iso, ctx
}

// mustEval runs src and fails the test on any exception.
func mustEval(t *testing.T, ctx *Context, src string) Handle {
	t.Helper()
	h, err := ctx.Eval(t.Name()+".js", src)
	require.NoError(t, err)
	return h
}

// setGlobal stores h on the global object under name.
func setGlobal(t *testing.T, ctx *Context, name string, h Handle) {
	t.Helper()
	g := ctx.Global(nil)
	defer ctx.Isolate().Release(g)
	require.NoError(t, ctx.SetProperty(g, name, h))
}

func mustInt(t *testing.T, ctx *Context, h Handle) int32 {
	t.Helper()
	n, err := ctx.AsInt32(h)
	require.NoError(t, err)
	return n
}

func mustString(t *testing.T, ctx *Context, h Handle) string {
	t.Helper()
	s, err := ctx.AsString(h)
	require.NoError(t, err)
	return s
}
