package eventbus

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type imported struct {
	rows int
}

type committed struct {
	label string
}

func TestBus_PublishMatchesByType(t *testing.T) {
	bus := New(logrus.New())
	var got []int
	_, err := bus.Subscribe(func(e *imported) { got = append(got, e.rows) })
	require.NoError(t, err)
	_, err = bus.Subscribe(func(e *committed) { t.Error("should not be called") })
	require.NoError(t, err)

	bus.Publish(&imported{rows: 3})
	assert.Equal(t, []int{3}, got)
}

func TestBus_UnhandledEventIsLogged(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	bus := New(log)

	bus.Publish(&imported{})
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "eventbus.publish.unhandled", hook.LastEntry().Message)
	assert.ErrorIs(t, bus.PublishE(&imported{}), ErrNoSubscribers)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New(nil)
	calls := 0
	cancel, err := bus.Subscribe(func(*imported) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, 1, bus.SubscribersCount())

	cancel()
	assert.Equal(t, 0, bus.SubscribersCount())
	assert.ErrorIs(t, bus.PublishE(&imported{}), ErrNoSubscribers)
	assert.Equal(t, 0, calls)
}

func TestBus_SubscribeRejectsBadHandlers(t *testing.T) {
	bus := New(nil)
	_, err := bus.Subscribe("not a func")
	require.ErrorIs(t, err, ErrNotAFunction)

	_, err = bus.Subscribe(func(*imported) int { return 0 })
	require.ErrorIs(t, err, ErrBadReturn)
}

func TestBus_PublishEJoinsHandlerErrors(t *testing.T) {
	bus := New(nil)
	boom := errors.New("boom")
	delivered := false
	_, _ = bus.Subscribe(func(*committed) error { return boom })
	_, _ = bus.Subscribe(func(*committed) { panic("bad handler") })
	_, _ = bus.Subscribe(func(*committed) error { delivered = true; return nil })

	err := bus.PublishE(&committed{label: "move +1d"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "panicked")
	assert.True(t, delivered)
}

func TestBus_PanicIsLogged(t *testing.T) {
	log, hook := test.NewNullLogger()
	bus := New(log)
	_, _ = bus.Subscribe(func(*committed) { panic("intentional") })

	assert.NotPanics(t, func() { bus.Publish(&committed{}) })
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "eventbus.publish.failed", hook.LastEntry().Message)
}

func TestMatchSignature(t *testing.T) {
	assert.True(t, MatchSignature(func(*imported) {}, []any{&imported{}}))
	assert.False(t, MatchSignature(func(*imported) {}, []any{&committed{}}))
	assert.False(t, MatchSignature(func(*imported) {}, []any{}))
	assert.False(t, MatchSignature(func(*imported) {}, []any{&imported{}, &imported{}}))
	assert.True(t, MatchSignature(func(context.Context) {}, []any{context.Background()}))
	assert.True(t, MatchSignature(func(*imported) {}, []any{nil}))
	assert.False(t, MatchSignature(func(int) {}, []any{nil}))
}

func TestBus_Clear(t *testing.T) {
	bus := New(nil)
	_, _ = bus.Subscribe(func(*imported) {})
	_, _ = bus.Subscribe(func(*committed) {})
	bus.Clear()
	assert.Equal(t, 0, bus.SubscribersCount())
}
