package runtime

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"courier/domain"
)

type stubSink struct{ name string }

func (s *stubSink) Consume(ctx context.Context, msg domain.Message) error {
	return nil
}

func TestRegistry_Register_One_Identity_One_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	identity := uuid.NewString()
	connectionID := uuid.NewString()
	sink := &stubSink{}

	// Given an empty registry
	req.Zero(registry.Size())
	req.Empty(registry.ConnectionsFor(identity))

	// When a connection registers under an identity
	registry.Register(identity, connectionID, sink)

	// Then the connection and its sink are visible
	req.Equal(1, registry.Size())
	req.Equal([]string{connectionID}, registry.ConnectionsFor(identity))

	sinks := registry.SinksFor(identity)
	req.Len(sinks, 1)
	req.Same(sink, sinks[0])
}

func TestRegistry_Register_MultiDevice(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	identity := uuid.NewString()
	connectionID1 := uuid.NewString()
	connectionID2 := uuid.NewString()

	// When the same identity registers two connections
	registry.Register(identity, connectionID1, &stubSink{name: "first"})
	registry.Register(identity, connectionID2, &stubSink{name: "second"})

	// Then both appear simultaneously
	req.Equal(2, registry.Size())
	req.ElementsMatch([]string{connectionID1, connectionID2}, registry.ConnectionsFor(identity))
	req.Len(registry.SinksFor(identity), 2)
}

func TestRegistry_Register_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	identity := uuid.NewString()
	connectionID := uuid.NewString()
	sink := &stubSink{}

	// When the same pair registers twice
	registry.Register(identity, connectionID, sink)
	registry.Register(identity, connectionID, sink)

	// Then the set is unchanged
	req.Equal(1, registry.Size())
	req.Equal([]string{connectionID}, registry.ConnectionsFor(identity))
}

func TestRegistry_Deregister_LastConnection_PrunesIdentity(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	identity := uuid.NewString()
	connectionID := uuid.NewString()

	// Given a registered connection
	registry.Register(identity, connectionID, &stubSink{})

	// When it deregisters
	registry.Deregister(identity, connectionID)

	// Then the identity's set is empty and nothing leaks
	req.Zero(registry.Size())
	req.Empty(registry.ConnectionsFor(identity))
	req.Nil(registry.SinksFor(identity))
}

func TestRegistry_Deregister_OneOfMany(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	identity := uuid.NewString()
	connectionID1 := uuid.NewString()
	connectionID2 := uuid.NewString()

	registry.Register(identity, connectionID1, &stubSink{name: "first"})
	registry.Register(identity, connectionID2, &stubSink{name: "second"})

	// When one of the two connections deregisters
	registry.Deregister(identity, connectionID1)

	// Then only the other remains
	req.Equal(1, registry.Size())
	req.Equal([]string{connectionID2}, registry.ConnectionsFor(identity))
}

func TestRegistry_Deregister_Unknown_IsNoop(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	identity := uuid.NewString()

	registry.Register(identity, uuid.NewString(), &stubSink{})

	// A double-close style duplicate deregister must not error or remove
	// anything else
	registry.Deregister(uuid.NewString(), uuid.NewString())
	registry.Deregister(identity, "gone")

	req.Equal(1, registry.Size())
}

func TestRegistry_Concurrent_RegisterDeregister(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	identity := uuid.NewString()

	// Many connections register, look up, and deregister concurrently;
	// the registry must end empty with no lost updates.
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			connectionID := uuid.NewString()
			registry.Register(identity, connectionID, &stubSink{})
			_ = registry.SinksFor(identity)
			_ = registry.ConnectionsFor(identity)
			registry.Deregister(identity, connectionID)
		}()
	}
	wg.Wait()

	req.Zero(registry.Size())
	req.Empty(registry.ConnectionsFor(identity))
}
