package runtime

import (
	"chat-hub/domain"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Register_And_Lookup(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connID := domain.ConnectionID(uuid.NewString())

	// Given an empty registry
	req.Zero(registry.Len())

	// When a connection joins as alice
	previous, replaced := registry.Register(connID, 1, "alice")

	// Then the record is retrievable and nothing was replaced
	req.False(replaced)
	req.Zero(previous)
	record, ok := registry.Lookup(connID)
	req.True(ok)
	req.Equal(domain.UserID(1), record.UserID)
	req.Equal("alice", record.Username)
	req.False(record.ConnectedAt.IsZero())
	req.Equal(1, registry.Len())
}

func TestRegistry_Register_Same_Handle_Overwrites(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connID := domain.ConnectionID(uuid.NewString())
	registry.Register(connID, 1, "alice")

	// When the same handle registers as bob
	previous, replaced := registry.Register(connID, 2, "bob")

	// Then alice's record is handed back and bob owns the handle
	req.True(replaced)
	req.Equal(domain.UserID(1), previous.UserID)
	record, _ := registry.Lookup(connID)
	req.Equal(domain.UserID(2), record.UserID)
	req.Equal(1, registry.Len())
}

func TestRegistry_Unregister_Unknown_Handle(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	// When an unknown handle is unregistered
	_, ok := registry.Unregister("ghost")

	// Then nothing happens
	req.False(ok)
	req.Zero(registry.Len())
}

func TestRegistry_Records_Is_A_Snapshot(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Register("c1", 1, "alice")
	registry.Register("c2", 1, "alice")
	registry.Register("c3", 2, "bob")

	// When records are taken and a connection then leaves
	records := registry.Records()
	record, ok := registry.Unregister("c1")

	// Then the snapshot is untouched
	req.True(ok)
	req.Equal(domain.ConnectionID("c1"), record.ConnectionID)
	req.Len(records, 3)
	req.Equal(2, registry.Len())
}
