package relay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"chat-relay/internal/auth"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// newTestClient builds a client with no transport behind it. Frames
// delivered to it pile up in the send buffer, where tests read them.
func newTestClient() *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:     uuid.New().String(),
		send:   make(chan []byte, sendBufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// stubVerifier resolves tokens from a fixed table, optionally after a
// delay, standing in for the external identity provider.
type stubVerifier struct {
	tokens map[string]auth.Identity
	delay  time.Duration
}

func (v *stubVerifier) Verify(ctx context.Context, idToken string) (auth.Identity, error) {
	if v.delay > 0 {
		select {
		case <-time.After(v.delay):
		case <-ctx.Done():
			return auth.Identity{}, ctx.Err()
		}
	}
	identity, ok := v.tokens[idToken]
	if !ok {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return identity, nil
}

// waitFrame reads frames from the client until one of the wanted type
// arrives, failing the test on timeout.
func waitFrame(t *testing.T, c *Client, frameType FrameType) map[string]any {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				t.Fatalf("send channel closed while waiting for %q frame", frameType)
				return nil
			}
			var frame map[string]any
			require.NoError(t, json.Unmarshal(data, &frame))
			if frame["type"] == string(frameType) {
				return frame
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q frame", frameType)
			return nil
		}
	}
}

// drainFrames empties the client's send buffer and returns the decoded
// frames.
func drainFrames(t *testing.T, c *Client) []map[string]any {
	t.Helper()
	var frames []map[string]any
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return frames
			}
			var frame map[string]any
			require.NoError(t, json.Unmarshal(data, &frame))
			frames = append(frames, frame)
		default:
			return frames
		}
	}
}

// framesOfType filters decoded frames by their type discriminator.
func framesOfType(frames []map[string]any, frameType FrameType) []map[string]any {
	var matched []map[string]any
	for _, frame := range frames {
		if frame["type"] == string(frameType) {
			matched = append(matched, frame)
		}
	}
	return matched
}
