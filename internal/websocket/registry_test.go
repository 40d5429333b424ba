package websocket

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func newBoundConnection(t *testing.T, participantID, pollID string) *Connection {
	t.Helper()
	wsConn, _ := createTestWebSocketConnection(t)
	conn := NewConnection(wsConn)
	t.Cleanup(func() { _ = conn.Close() })
	if err := conn.SetCredentials(participantID, pollID, "name-"+participantID); err != nil {
		t.Fatalf("SetCredentials failed: %v", err)
	}
	return conn
}

func TestRegistry_NewRegistryInitialization(t *testing.T) {
	registry := NewRegistry(nil)

	stats := registry.GetStats()
	if stats["total_connections"] != 0 || stats["active_polls"] != 0 {
		t.Errorf("Expected empty registry, got %v", stats)
	}
}

func TestRegistry_RegisterConnectionValidation(t *testing.T) {
	registry := NewRegistry(nil)

	if err := registry.RegisterConnection(nil); err != ErrNilConnection {
		t.Errorf("Expected ErrNilConnection, got %v", err)
	}

	wsConn, _ := createTestWebSocketConnection(t)
	conn := NewConnection(wsConn)
	defer conn.Close()

	if err := registry.RegisterConnection(conn); err != ErrConnectionNotAuthenticated {
		t.Errorf("Expected ErrConnectionNotAuthenticated, got %v", err)
	}
}

func TestRegistry_GroupsByPoll(t *testing.T) {
	registry := NewRegistry(nil)

	a := newBoundConnection(t, "alice", "poll-1")
	b := newBoundConnection(t, "bob", "poll-1")
	c := newBoundConnection(t, "carol", "poll-2")

	for _, conn := range []*Connection{a, b, c} {
		if err := registry.RegisterConnection(conn); err != nil {
			t.Fatalf("RegisterConnection failed: %v", err)
		}
	}

	if got := registry.ConnectionCount("poll-1"); got != 2 {
		t.Errorf("Expected 2 connections in poll-1, got %d", got)
	}
	if got := len(registry.GetPollConnections("poll-2")); got != 1 {
		t.Errorf("Expected 1 connection in poll-2, got %d", got)
	}
	if got := len(registry.GetPollConnections("unknown")); got != 0 {
		t.Errorf("Expected no connections for unknown poll, got %d", got)
	}

	stats := registry.GetStats()
	if stats["total_connections"] != 3 || stats["active_polls"] != 2 {
		t.Errorf("Unexpected stats %v", stats)
	}
}

func TestRegistry_ConnectionReplacement(t *testing.T) {
	registry := NewRegistry(nil)

	first := newBoundConnection(t, "bob", "poll-1")
	second := newBoundConnection(t, "bob", "poll-1")

	registry.RegisterConnection(first)
	if err := registry.RegisterConnection(second); err != nil {
		t.Fatalf("Connection replacement failed: %v", err)
	}

	conns := registry.GetPollConnections("poll-1")
	if len(conns) != 1 || conns[0] != second {
		t.Fatal("second connection should replace the first")
	}

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Error("replaced connection should be closed")
	}

	// the stale connection must not evict its replacement
	if registry.UnregisterConnection(first) {
		t.Error("unregistering a replaced connection should be a no-op")
	}
	if registry.ConnectionCount("poll-1") != 1 {
		t.Error("replacement was removed by stale unregister")
	}
}

func TestRegistry_UnregisterConnection(t *testing.T) {
	registry := NewRegistry(nil)
	conn := newBoundConnection(t, "bob", "poll-1")
	registry.RegisterConnection(conn)

	if !registry.UnregisterConnection(conn) {
		t.Error("expected first unregister to remove the connection")
	}
	if registry.UnregisterConnection(conn) {
		t.Error("second unregister should report nothing removed")
	}
	if registry.UnregisterConnection(nil) {
		t.Error("nil unregister should report nothing removed")
	}

	stats := registry.GetStats()
	if stats["active_polls"] != 0 {
		t.Errorf("empty poll groups should be pruned, got %v", stats)
	}
}

func TestRegistry_DropPoll(t *testing.T) {
	registry := NewRegistry(nil)
	registry.RegisterConnection(newBoundConnection(t, "alice", "poll-1"))
	registry.RegisterConnection(newBoundConnection(t, "bob", "poll-1"))
	registry.RegisterConnection(newBoundConnection(t, "carol", "poll-2"))

	dropped := registry.DropPoll("poll-1")
	if len(dropped) != 2 {
		t.Errorf("Expected 2 dropped connections, got %d", len(dropped))
	}
	if registry.ConnectionCount("poll-1") != 0 {
		t.Error("dropped poll should have no connections")
	}
	if registry.ConnectionCount("poll-2") != 1 {
		t.Error("other polls must be untouched")
	}
}

func TestRegistry_ConcurrentRegistrationAndUnregistration(t *testing.T) {
	registry := NewRegistry(nil)

	const numConnections = 20
	conns := make([]*Connection, numConnections)
	for i := range conns {
		conns[i] = newBoundConnection(t, fmt.Sprintf("user-%d", i), fmt.Sprintf("poll-%d", i%3))
	}

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func(c *Connection) {
			defer wg.Done()
			if err := registry.RegisterConnection(c); err != nil {
				t.Errorf("RegisterConnection failed: %v", err)
			}
			_ = registry.GetPollConnections(c.GetPollID())
			registry.UnregisterConnection(c)
		}(conn)
	}
	wg.Wait()

	if stats := registry.GetStats(); stats["total_connections"] != 0 {
		t.Errorf("Expected all connections unregistered, got %v", stats)
	}
}
