package relay

import (
	"sync"
	"testing"

	"chat-relay/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authenticate(t *testing.T, registry *Registry, c *Client, identity auth.Identity) {
	t.Helper()
	require.NoError(t, registry.BeginAuthentication(c))
	require.NoError(t, registry.CompleteAuthentication(c, identity))
}

func TestNextMessageIDStartsAtOneAndIncrements(t *testing.T) {
	hub := NewHub(NewRegistry(true), nil)

	assert.Equal(t, uint64(1), hub.NextMessageID())
	assert.Equal(t, uint64(2), hub.NextMessageID())
	assert.Equal(t, uint64(3), hub.NextMessageID())
}

func TestNextMessageIDUnderConcurrency(t *testing.T) {
	hub := NewHub(NewRegistry(true), nil)

	const goroutines = 8
	const perGoroutine = 100

	var wg sync.WaitGroup
	seen := make(chan uint64, goroutines*perGoroutine)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				seen <- hub.NextMessageID()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[uint64]bool)
	for id := range seen {
		assert.False(t, unique[id], "message id %d assigned twice", id)
		unique[id] = true
	}
	assert.Len(t, unique, goroutines*perGoroutine)
}

func TestRegisterSendsWelcomeThenPresence(t *testing.T) {
	registry := NewRegistry(true)
	hub := NewHub(registry, nil)
	client := newTestClient()

	hub.Register(client)

	frames := drainFrames(t, client)
	require.Len(t, frames, 2)
	assert.Equal(t, string(FrameConnection), frames[0]["type"])
	assert.Equal(t, client.ID(), frames[0]["clientId"])
	assert.Equal(t, string(FrameUserCount), frames[1]["type"])
	assert.Equal(t, float64(0), frames[1]["count"])
}

func TestPresenceCountEqualsEligibleSet(t *testing.T) {
	registry := NewRegistry(true)
	hub := NewHub(registry, nil)

	alice := newTestClient()
	bob := newTestClient()
	guest := newTestClient()
	hub.Register(alice)
	hub.Register(bob)
	hub.Register(guest)

	authenticate(t, registry, alice, auth.Identity{UID: "u1", Name: "Alice"})
	authenticate(t, registry, bob, auth.Identity{UID: "u2", Name: "Bob"})

	for _, c := range []*Client{alice, bob, guest} {
		drainFrames(t, c)
	}

	hub.PublishPresence()

	// The count reaches every open connection, authenticated or not.
	for _, c := range []*Client{alice, bob, guest} {
		frame := waitFrame(t, c, FrameUserCount)
		assert.Equal(t, float64(2), frame["count"])
	}
}

func TestPresenceRecomputedOnDisconnect(t *testing.T) {
	registry := NewRegistry(true)
	hub := NewHub(registry, nil)

	alice := newTestClient()
	bob := newTestClient()
	hub.Register(alice)
	hub.Register(bob)
	authenticate(t, registry, alice, auth.Identity{UID: "u1"})
	authenticate(t, registry, bob, auth.Identity{UID: "u2"})
	drainFrames(t, alice)
	drainFrames(t, bob)

	hub.Disconnect(bob)

	frame := waitFrame(t, alice, FrameUserCount)
	assert.Equal(t, float64(1), frame["count"])
	assert.Equal(t, 1, registry.Len())
}

func TestDisconnectIsIdempotent(t *testing.T) {
	registry := NewRegistry(true)
	hub := NewHub(registry, nil)

	client := newTestClient()
	other := newTestClient()
	hub.Register(client)
	hub.Register(other)
	drainFrames(t, other)

	hub.Disconnect(client)
	frames := framesOfType(drainFrames(t, other), FrameUserCount)
	require.Len(t, frames, 1)

	// A second disconnect publishes nothing.
	hub.Disconnect(client)
	assert.Empty(t, drainFrames(t, other))
}

func TestBroadcastToEligibleSkipsUnauthenticated(t *testing.T) {
	registry := NewRegistry(true)
	hub := NewHub(registry, nil)

	alice := newTestClient()
	guest := newTestClient()
	hub.Register(alice)
	hub.Register(guest)
	authenticate(t, registry, alice, auth.Identity{UID: "u1"})
	drainFrames(t, alice)
	drainFrames(t, guest)

	hub.BroadcastToEligible(NewChatFrame(1, "Alice", "", "hi", alice.ID(), "u1"))

	assert.Len(t, framesOfType(drainFrames(t, alice), FrameChatMessage), 1)
	assert.Empty(t, framesOfType(drainFrames(t, guest), FrameChatMessage))
}

func TestBroadcastExceptSender(t *testing.T) {
	registry := NewRegistry(true)
	hub := NewHub(registry, nil)

	alice := newTestClient()
	bob := newTestClient()
	hub.Register(alice)
	hub.Register(bob)
	authenticate(t, registry, alice, auth.Identity{UID: "u1"})
	authenticate(t, registry, bob, auth.Identity{UID: "u2"})
	drainFrames(t, alice)
	drainFrames(t, bob)

	hub.BroadcastToEligibleExcept(NewTypingStatusFrame(alice.ID(), "Alice", true), alice)

	assert.Empty(t, framesOfType(drainFrames(t, alice), FrameTypingStatus))
	frames := framesOfType(drainFrames(t, bob), FrameTypingStatus)
	require.Len(t, frames, 1)
	assert.Equal(t, true, frames[0]["isTyping"])
}

func TestBroadcastContinuesPastClosedClient(t *testing.T) {
	registry := NewRegistry(true)
	hub := NewHub(registry, nil)

	clients := []*Client{newTestClient(), newTestClient(), newTestClient()}
	for i, c := range clients {
		hub.Register(c)
		authenticate(t, registry, c, auth.Identity{UID: string(rune('a' + i))})
	}
	for _, c := range clients {
		drainFrames(t, c)
	}

	// Closed between enumeration and send: still in the registry
	// snapshot, but no longer accepting frames.
	clients[1].close()

	hub.BroadcastToEligible(NewChatFrame(1, "Alice", "", "hi", clients[0].ID(), "u1"))

	assert.Len(t, framesOfType(drainFrames(t, clients[0]), FrameChatMessage), 1)
	assert.Len(t, framesOfType(drainFrames(t, clients[2]), FrameChatMessage), 1)
}

func TestBroadcastContinuesPastFullBuffer(t *testing.T) {
	registry := NewRegistry(false)
	hub := NewHub(registry, nil)

	stuck := newTestClient()
	stuck.send = make(chan []byte, 1)
	healthy := newTestClient()
	hub.Register(stuck)
	hub.Register(healthy)
	drainFrames(t, healthy)

	// stuck's single-slot buffer already holds its welcome frame.
	hub.BroadcastToAll(NewUserCountFrame(2))

	frames := framesOfType(drainFrames(t, healthy), FrameUserCount)
	assert.NotEmpty(t, frames)
}
