package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishOrder(t *testing.T) {
	bus := NewBus()
	var got []string
	bus.Subscribe(func(ev Event) { got = append(got, "a:"+string(ev.Kind)) })
	bus.Subscribe(func(ev Event) { got = append(got, "b:"+string(ev.Kind)) })

	bus.Publish(Event{Kind: WorkspaceUpdated})
	assert.Equal(t, []string{"a:workspace-updated", "b:workspace-updated"}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	calls := 0
	unsub := bus.Subscribe(func(Event) { calls++ })
	bus.Publish(Event{Kind: WorkspaceUpdated})
	require.Equal(t, 1, calls)
	calls = 0

	unsub()
	unsub()

	bus.Publish(Event{Kind: WorkspaceRemoved})
	assert.Zero(t, calls)
}

func TestBus_UnsubscribeDuringPublish(t *testing.T) {
	bus := NewBus()
	var unsub func()
	first, second := 0, 0
	unsub = bus.Subscribe(func(Event) {
		first++
		unsub()
	})
	bus.Subscribe(func(Event) { second++ })

	bus.Publish(Event{Kind: SyncFinished})
	bus.Publish(Event{Kind: SyncFinished})
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}
