// Package history is a linear undo/redo stack of commands over an opaque state value.
package history

// Command transforms a state. Apply must depend only on the state it is given,
// so Revert can restore the prior state without replaying history.
type Command[T any] interface {
	Apply(state T) T
	Revert(state T) T
}

// Func adapts a pair of functions to Command.
type Func[T any] struct {
	Label    string
	ApplyFn  func(T) T
	RevertFn func(T) T
}

func (f Func[T]) Apply(state T) T  { return f.ApplyFn(state) }
func (f Func[T]) Revert(state T) T { return f.RevertFn(state) }

type Option func(*options)

type options struct {
	limit int
}

// WithLimit caps the number of undoable commands; the oldest are discarded first.
// Zero or a negative value means unlimited.
func WithLimit(n int) Option {
	return func(o *options) { o.limit = n }
}

// History is not safe for concurrent use.
type History[T any] struct {
	present T
	past    []Command[T]
	future  []Command[T]
	limit   int
}

func New[T any](initial T, opts ...Option) *History[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &History[T]{present: initial, limit: o.limit}
}

func (h *History[T]) Present() T {
	return h.present
}

// Execute applies cmd to the present state, records it and clears the redo stack.
func (h *History[T]) Execute(cmd Command[T]) T {
	h.present = cmd.Apply(h.present)
	h.past = append(h.past, cmd)
	if h.limit > 0 && len(h.past) > h.limit {
		h.past = append([]Command[T](nil), h.past[len(h.past)-h.limit:]...)
	}
	h.future = nil
	return h.present
}

func (h *History[T]) Undo() (T, bool) {
	if len(h.past) == 0 {
		return h.present, false
	}
	cmd := h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	h.present = cmd.Revert(h.present)
	h.future = append(h.future, cmd)
	return h.present, true
}

func (h *History[T]) Redo() (T, bool) {
	if len(h.future) == 0 {
		return h.present, false
	}
	cmd := h.future[len(h.future)-1]
	h.future = h.future[:len(h.future)-1]
	h.present = cmd.Apply(h.present)
	h.past = append(h.past, cmd)
	return h.present, true
}

func (h *History[T]) CanUndo() bool { return len(h.past) > 0 }
func (h *History[T]) CanRedo() bool { return len(h.future) > 0 }

// Reset replaces the present state and forgets all history.
func (h *History[T]) Reset(state T) {
	h.present = state
	h.past = nil
	h.future = nil
}
