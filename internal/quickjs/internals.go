//go:build quickjs

package quickjs

import (
	"errors"
	"fmt"
	"reflect"
	"unsafe"

	"github.com/cryguy/jsbridge/internal/core"
	"modernc.org/libc"
	lib "modernc.org/libquickjs"
	"modernc.org/quickjs"
)

// cAPI holds the C-level handles of a VM. The Go wrapper never runs
// pending jobs and has no byte-level ArrayBuffer access, so both go
// through libquickjs directly.
//
// VM layout (modernc.org/quickjs@v0.17.1):
//
//	type VM struct {
//	    cContext uintptr
//	    ...
//	    runtime  *runtime
//	}
//
//	type runtime struct {
//	    cRuntime uintptr
//	    tls      *libc.TLS
//	}
type cAPI struct {
	tls *libc.TLS
	ctx uintptr
	rt  uintptr
}

func extractCAPI(vm *quickjs.VM) (c cAPI, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("quickjs: reading VM internals: %v", p)
		}
	}()
	vmPtr := uintptr(unsafe.Pointer(vm))
	c.ctx = *(*uintptr)(unsafe.Pointer(vmPtr))
	if c.ctx == 0 {
		return c, errors.New("quickjs: JSContext is nil")
	}
	rtField, ok := reflect.TypeOf(vm).Elem().FieldByName("runtime")
	if !ok {
		return c, errors.New("quickjs: VM has no runtime field")
	}
	rtPtr := *(*uintptr)(unsafe.Pointer(vmPtr + rtField.Offset))
	if rtPtr == 0 {
		return c, errors.New("quickjs: runtime is nil")
	}
	c.rt = *(*uintptr)(unsafe.Pointer(rtPtr))
	c.tls = *(**libc.TLS)(unsafe.Pointer(rtPtr + unsafe.Sizeof(uintptr(0))))
	if c.tls == nil || c.rt == 0 {
		return c, errors.New("quickjs: runtime handles are nil")
	}

	// Smoke test before trusting the pointers.
	glob := lib.XJS_GetGlobalObject(c.tls, c.ctx)
	lib.XFreeValue(c.tls, c.ctx, glob)
	return c, nil
}

// executePendingJobs drains the job queue and returns how many ran.
func (c cAPI) executePendingJobs() int {
	n := 0
	for lib.XJS_ExecutePendingJob(c.tls, c.rt, 0) > 0 {
		n++
	}
	return n
}

// setGlobalBuffer stores a new ArrayBuffer holding a copy of data at
// globalThis[name].
func (c cAPI) setGlobalBuffer(name string, data []byte) error {
	var ptr uintptr
	if len(data) > 0 {
		ptr = uintptr(unsafe.Pointer(&data[0]))
	}
	val := lib.XJS_NewArrayBufferCopy(c.tls, c.ctx, ptr, lib.Tsize_t(len(data)))

	cName, err := libc.CString(name)
	if err != nil {
		lib.XFreeValue(c.tls, c.ctx, val)
		return fmt.Errorf("quickjs: allocating property name: %w", err)
	}
	defer libc.Xfree(c.tls, cName)

	glob := lib.XJS_GetGlobalObject(c.tls, c.ctx)
	// JS_SetPropertyStr consumes val.
	ret := lib.XJS_SetPropertyStr(c.tls, c.ctx, glob, cName, val)
	lib.XFreeValue(c.tls, c.ctx, glob)
	if ret < 0 {
		return fmt.Errorf("quickjs: setting global %q", name)
	}
	return nil
}

// globalBufferBytes copies the ArrayBuffer at globalThis[name].
func (c cAPI) globalBufferBytes(name string) ([]byte, error) {
	cName, err := libc.CString(name)
	if err != nil {
		return nil, fmt.Errorf("quickjs: allocating property name: %w", err)
	}
	defer libc.Xfree(c.tls, cName)

	glob := lib.XJS_GetGlobalObject(c.tls, c.ctx)
	val := lib.XJS_GetPropertyStr(c.tls, c.ctx, glob, cName)
	lib.XFreeValue(c.tls, c.ctx, glob)
	defer lib.XFreeValue(c.tls, c.ctx, val)

	var size lib.Tsize_t
	ptr := lib.XJS_GetArrayBuffer(c.tls, c.ctx, uintptr(unsafe.Pointer(&size)), val)
	if ptr == 0 || size == 0 {
		return []byte{}, nil
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size))
	return out, nil
}

// promiseState reads the promise at globalThis[name]. A settled promise is
// replaced there by its result, ready for adoption.
func (c cAPI) promiseState(name string) (core.PromiseState, error) {
	cName, err := libc.CString(name)
	if err != nil {
		return core.PromisePending, fmt.Errorf("quickjs: allocating property name: %w", err)
	}
	defer libc.Xfree(c.tls, cName)

	glob := lib.XJS_GetGlobalObject(c.tls, c.ctx)
	defer lib.XFreeValue(c.tls, c.ctx, glob)
	p := lib.XJS_GetPropertyStr(c.tls, c.ctx, glob, cName)
	defer lib.XFreeValue(c.tls, c.ctx, p)

	switch lib.XJS_PromiseState(c.tls, c.ctx, p) {
	case lib.EJS_PROMISE_PENDING:
		return core.PromisePending, nil
	case lib.EJS_PROMISE_FULFILLED:
		err = c.replace(glob, cName, lib.XJS_PromiseResult(c.tls, c.ctx, p))
		return core.PromiseFulfilled, err
	case lib.EJS_PROMISE_REJECTED:
		err = c.replace(glob, cName, lib.XJS_PromiseResult(c.tls, c.ctx, p))
		return core.PromiseRejected, err
	}
	return core.PromisePending, fmt.Errorf("quickjs: %s is not a promise", name)
}

// replace stores val at obj[name], consuming val.
func (c cAPI) replace(obj lib.TJSValue, name uintptr, val lib.TJSValue) error {
	if lib.XJS_SetPropertyStr(c.tls, c.ctx, obj, name, val) < 0 {
		return errors.New("quickjs: storing promise result")
	}
	return nil
}
