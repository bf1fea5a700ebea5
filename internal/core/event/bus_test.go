package event

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBusDeliversNextTick(t *testing.T) {
	b := NewBus()
	var got []uint64
	Subscribe(b, func(e EntitySpawned) { got = append(got, e.Handle) })

	Emit(b, EntitySpawned{Handle: 7, Template: "crate"})
	require.Equal(t, 1, b.Pending())

	b.DispatchAll()
	require.Empty(t, got, "events must not be visible in the tick they were emitted")

	b.SwapBuffers()
	b.DispatchAll()
	require.Equal(t, []uint64{7}, got)
	require.Zero(t, b.Pending())

	b.SwapBuffers()
	b.DispatchAll()
	require.Equal(t, []uint64{7}, got, "swapped-out events are delivered once")
}

func TestBusRoutesByType(t *testing.T) {
	b := NewBus()
	spawned, destroyed := 0, 0
	Subscribe(b, func(EntitySpawned) { spawned++ })
	Subscribe(b, func(EntityDestroyed) { destroyed++ })

	Emit(b, EntitySpawned{Handle: 1})
	Emit(b, EntitySpawned{Handle: 2})
	Emit(b, EntityDestroyed{Handle: 1})
	b.SwapBuffers()
	b.DispatchAll()

	require.Equal(t, 2, spawned)
	require.Equal(t, 1, destroyed)
}

func TestBusKeepsEmissionOrderAcrossTypes(t *testing.T) {
	b := NewBus()
	var got []string
	Subscribe(b, func(e EntitySpawned) { got = append(got, "spawn "+e.Template) })
	Subscribe(b, func(EntityDestroyed) { got = append(got, "destroy") })

	Emit(b, EntityDestroyed{Handle: 9})
	Emit(b, EntitySpawned{Handle: 1, Template: "a"})
	Emit(b, EntityDestroyed{Handle: 1})
	Emit(b, EntitySpawned{Handle: 2, Template: "b"})
	b.SwapBuffers()
	b.DispatchAll()

	require.Equal(t, []string{"destroy", "spawn a", "destroy", "spawn b"}, got)
}
