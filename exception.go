package jsbridge

import (
	"github.com/cryguy/jsbridge/internal/core"
)

// ExceptionContext receives the exception and message of a call that
// threw. Both stay NoHandle when the call completed normally. The handles
// belong to the caller; Reset releases them.
type ExceptionContext struct {
	Exception Handle
	Message   Handle
}

// Threw reports whether the last call using ec threw.
func (ec *ExceptionContext) Threw() bool {
	return ec != nil && ec.Exception != NoHandle
}

// Reset releases the held handles and clears both slots.
func (ec *ExceptionContext) Reset(iso *Isolate) {
	if ec == nil {
		return
	}
	iso.Release(ec.Exception)
	iso.Release(ec.Message)
	ec.Exception, ec.Message = NoHandle, NoHandle
}

// capture records a thrown exception. Listeners always see the message;
// ec receives durable handles unless it is nil. A previous exception held
// by ec is released first, so ec reflects only the last throw.
func (c *Context) capture(ec *ExceptionContext, thrown *core.Thrown) {
	iso := c.iso
	msg := core.NewMessage(thrown, iso.sources[thrown.ScriptName], iso.cfg.StackTraceLimit)
	if thrown.OutOfMemory {
		iso.outOfMemory(msg.ScriptName, true)
	}
	iso.notify(msg)

	if ec == nil {
		if thrown.Exception != nil {
			c.eng.Release(thrown.Exception)
		}
		return
	}
	if ec.Threw() {
		ec.Reset(iso)
	}
	exc := thrown.Exception
	if exc == nil {
		exc = c.eng.Undefined()
	}
	ec.Exception = c.persist(exc)
	ec.Message = iso.handles.add(&handleEntry{kind: handleMessage, msg: msg})
}
