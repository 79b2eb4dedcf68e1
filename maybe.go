package jsbridge

// Maybe is a result that may be absent. An absent Maybe is not an error by
// itself; whether an exception caused it is reported separately through the
// ExceptionContext of the call.
type Maybe[T any] struct {
	Valid bool
	Value T
}

// Just returns a present Maybe.
func Just[T any](v T) Maybe[T] { return Maybe[T]{Valid: true, Value: v} }

// Nothing returns an absent Maybe.
func Nothing[T any]() Maybe[T] { return Maybe[T]{} }

// Get returns the value and whether it is present.
func (m Maybe[T]) Get() (T, bool) { return m.Value, m.Valid }

// OrElse returns the value, or def when absent.
func (m Maybe[T]) OrElse(def T) T {
	if !m.Valid {
		return def
	}
	return m.Value
}
