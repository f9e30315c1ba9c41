package observer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evervolv/evsettings/pkg/schema"
)

func TestNotifyDeliversToMatchingURI(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var mu sync.Mutex
	var got []schema.Change
	bus.Register(schema.URI(schema.System, "a"), func(c schema.Change) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	})

	bus.Notify(schema.Change{Namespace: schema.System, Name: "a", User: 0})
	bus.Notify(schema.Change{Namespace: schema.System, Name: "b", User: 0})
	bus.Notify(schema.Change{Namespace: schema.Secure, Name: "a", User: 0})
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, schema.System, got[0].Namespace)
}

func TestRegisterAllSeesEveryChange(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var mu sync.Mutex
	var got []string
	bus.Register(All, func(c schema.Change) {
		mu.Lock()
		got = append(got, c.URI())
		mu.Unlock()
	})

	bus.Notify(schema.Change{Namespace: schema.System, Name: "a", User: 0})
	bus.Notify(schema.Change{Namespace: schema.Global, Name: "b", User: 10})
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"evsettings://system/a", "evsettings://global/b"}, got)
}

func TestNotifyCoalescesWhileBusy(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	change := schema.Change{Namespace: schema.Secure, Name: "k", User: 0}

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	bus.Register(change.URI(), func(schema.Change) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}
	})

	bus.Notify(change)
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}

	for range 3 {
		bus.Notify(change)
	}
	close(release)
	bus.Close()

	assert.Equal(t, int32(2), calls.Load())
}

func TestUnregister(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var calls atomic.Int32
	reg := bus.Register("evsettings://system/x", func(schema.Change) { calls.Add(1) })
	bus.Unregister(reg)
	bus.Unregister(reg)

	bus.Notify(schema.Change{Namespace: schema.System, Name: "x"})
	bus.Close()
	assert.Zero(t, calls.Load())
}

func TestHandlerPanicDoesNotStopBus(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var calls atomic.Int32
	bus.Register("evsettings://system/p", func(schema.Change) { panic("boom") })
	bus.Register("evsettings://system/q", func(schema.Change) { calls.Add(1) })

	bus.Notify(schema.Change{Namespace: schema.System, Name: "p"})
	bus.Notify(schema.Change{Namespace: schema.System, Name: "q"})
	bus.Close()
	assert.Equal(t, int32(1), calls.Load())
}

func TestNotifyAfterCloseIsDropped(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	bus.Close()
	assert.NotPanics(t, func() {
		bus.Notify(schema.Change{Namespace: schema.Global, Name: "x"})
		bus.Close()
	})
}
