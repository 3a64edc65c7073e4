package resource

// Option is a value that may be absent. The zero Option is empty.
type Option[T any] struct {
	value T
	ok    bool
}

func Some[T any](value T) Option[T] { return Option[T]{value: value, ok: true} }

func None[T any]() Option[T] { return Option[T]{} }

func (o Option[T]) IsSet() bool { return o.ok }

// Get returns the held value and panics on an empty Option.
func (o Option[T]) Get() T {
	if !o.ok {
		panic("resource: Get on an empty Option")
	}
	return o.value
}

// Or returns the held value, or fallback when empty.
func (o Option[T]) Or(fallback T) T {
	if o.ok {
		return o.value
	}
	return fallback
}
