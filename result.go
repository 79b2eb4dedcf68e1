package jsbridge

// The methods in this file fold the two failure channels into one error:
// an *ExceptionError when the call threw, ErrNothing when the result is
// absent without an exception. Use errors.As and errors.Is to tell them
// apart. The exception handle inside an ExceptionError belongs to the
// caller.

// exceptionError converts a filled ExceptionContext into an error,
// consuming its message handle.
func (c *Context) exceptionError(ec *ExceptionContext) error {
	if !ec.Threw() {
		return ErrNothing
	}
	msg := c.iso.Message(ec.Message)
	c.iso.Release(ec.Message)
	err := &ExceptionError{Exception: ec.Exception, Message: msg}
	ec.Exception, ec.Message = NoHandle, NoHandle
	return err
}

func (c *Context) handleResult(h Handle, ec *ExceptionContext) (Handle, error) {
	if h == NoHandle {
		return NoHandle, c.exceptionError(ec)
	}
	return h, nil
}

func maybeResult[T any](c *Context, m Maybe[T], ec *ExceptionContext) (T, error) {
	if !m.Valid {
		var zero T
		return zero, c.exceptionError(ec)
	}
	return m.Value, nil
}

// Eval compiles and runs source.
func (c *Context) Eval(name, source string) (Handle, error) {
	var ec ExceptionContext
	script := c.Compile(&ec, name, source)
	if script == NoHandle {
		return NoHandle, c.exceptionError(&ec)
	}
	defer c.iso.Release(script)
	return c.handleResult(c.Run(&ec, script), &ec)
}

// CallFunc invokes fn with recv as this.
func (c *Context) CallFunc(fn, recv Handle, args ...Handle) (Handle, error) {
	var ec ExceptionContext
	return c.handleResult(c.CallWithThis(&ec, fn, recv, args...), &ec)
}

// GetProperty reads obj[key].
func (c *Context) GetProperty(obj Handle, key string) (Handle, error) {
	var ec ExceptionContext
	return c.handleResult(c.Get(&ec, obj, key), &ec)
}

// SetProperty assigns obj[key] = val. A rejected assignment (frozen
// object, setter returning false) is ErrNothing.
func (c *Context) SetProperty(obj Handle, key string, val Handle) error {
	var ec ExceptionContext
	ok, err := maybeResult(c, c.Set(&ec, obj, key, val), &ec)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNothing
	}
	return nil
}

// AsInt32 converts h to int32.
func (c *Context) AsInt32(h Handle) (int32, error) {
	var ec ExceptionContext
	return maybeResult(c, c.Int32Value(&ec, h), &ec)
}

// AsUint32 converts h to uint32.
func (c *Context) AsUint32(h Handle) (uint32, error) {
	var ec ExceptionContext
	return maybeResult(c, c.Uint32Value(&ec, h), &ec)
}

// AsInteger converts h to int64.
func (c *Context) AsInteger(h Handle) (int64, error) {
	var ec ExceptionContext
	return maybeResult(c, c.IntegerValue(&ec, h), &ec)
}

// AsNumber converts h to float64.
func (c *Context) AsNumber(h Handle) (float64, error) {
	var ec ExceptionContext
	return maybeResult(c, c.NumberValue(&ec, h), &ec)
}

// AsString converts h with String().
func (c *Context) AsString(h Handle) (string, error) {
	var ec ExceptionContext
	s, ok := c.StringValue(&ec, h)
	if !ok {
		return "", c.exceptionError(&ec)
	}
	return s, nil
}
