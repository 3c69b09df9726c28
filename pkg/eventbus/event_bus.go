// Package eventbus dispatches domain events to handlers by argument type.
package eventbus

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrNoSubscribers = errors.New("eventbus: no matching subscribers")
	ErrNotAFunction  = errors.New("eventbus: handler must be a function")
	ErrBadReturn     = errors.New("eventbus: handler must return nothing or a single error")
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Bus delivers each published event to every handler whose parameter list
// accepts it. Handlers run synchronously on the publishing goroutine.
type Bus struct {
	log *logrus.Logger

	mu       sync.RWMutex
	nextID   int
	handlers []subscription
}

type subscription struct {
	id int
	fn reflect.Value
}

func New(log *logrus.Logger) *Bus {
	return &Bus{log: log}
}

// Subscribe registers handler and returns a function that removes it.
// handler must be a func returning nothing or an error.
func (b *Bus) Subscribe(handler any) (func(), error) {
	v := reflect.ValueOf(handler)
	if v.Kind() != reflect.Func {
		return nil, ErrNotAFunction
	}
	t := v.Type()
	if t.NumOut() > 1 || (t.NumOut() == 1 && t.Out(0) != errorType) {
		return nil, fmt.Errorf("%w: handler %s", ErrBadReturn, t)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers = append(b.handlers, subscription{id: id, fn: v})
	return func() { b.unsubscribe(id) }, nil
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.handlers {
		if s.id == id {
			b.handlers = append(b.handlers[:i], b.handlers[i+1:]...)
			return
		}
	}
}

func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = nil
}

func (b *Bus) SubscribersCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

// MatchSignature reports whether handler can be called with args.
func MatchSignature(handler any, args []any) bool {
	t := reflect.TypeOf(handler)
	if t == nil || t.Kind() != reflect.Func || t.NumIn() != len(args) {
		return false
	}
	for i, arg := range args {
		param := t.In(i)
		if arg == nil {
			if param.Kind() != reflect.Interface && param.Kind() != reflect.Ptr {
				return false
			}
			continue
		}
		if !reflect.TypeOf(arg).AssignableTo(param) {
			return false
		}
	}
	return true
}

// Publish delivers args and logs handler failures. Events nobody listens to
// are logged at debug level.
func (b *Bus) Publish(args ...any) {
	err := b.PublishE(args...)
	switch {
	case err == nil:
	case errors.Is(err, ErrNoSubscribers):
		if b.log != nil {
			b.log.WithField("event", describe(args)).Debug("eventbus.publish.unhandled")
		}
	default:
		if b.log != nil {
			b.log.WithError(err).WithField("event", describe(args)).Error("eventbus.publish.failed")
		}
	}
}

// PublishE delivers args and joins every handler error. A panicking handler
// is reported as an error and does not stop delivery to the others.
func (b *Bus) PublishE(args ...any) error {
	b.mu.RLock()
	handlers := append([]subscription(nil), b.handlers...)
	b.mu.RUnlock()

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		if arg == nil {
			continue
		}
		in[i] = reflect.ValueOf(arg)
	}

	handled := false
	var errs []error
	for _, s := range handlers {
		if !MatchSignature(s.fn.Interface(), args) {
			continue
		}
		handled = true
		if err := call(s.fn, in); err != nil {
			errs = append(errs, err)
		}
	}
	if !handled {
		return ErrNoSubscribers
	}
	return errors.Join(errs...)
}

func call(fn reflect.Value, in []reflect.Value) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("eventbus: handler %s panicked: %v", fn.Type(), r)
		}
	}()
	args := make([]reflect.Value, len(in))
	for i, v := range in {
		if !v.IsValid() {
			v = reflect.Zero(fn.Type().In(i))
		}
		args[i] = v
	}
	out := fn.Call(args)
	if len(out) == 1 && !out[0].IsNil() {
		return out[0].Interface().(error)
	}
	return nil
}

func describe(args []any) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			out = append(out, "nil")
			continue
		}
		out = append(out, reflect.TypeOf(a).String())
	}
	return out
}
