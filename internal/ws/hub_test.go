package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHubBroadcastToUser(t *testing.T) {
	h := NewHub()
	a1, a2, b := NewClient(1), NewClient(1), NewClient(2)
	for _, c := range []*Client{a1, a2, b} {
		h.Register(c)
	}
	require.Equal(t, 3, h.ConnectionCount())
	require.True(t, h.Online(1))

	h.BroadcastToUser(1, map[string]string{"type": "notification"})
	for _, c := range []*Client{a1, a2} {
		var got map[string]string
		require.NoError(t, json.Unmarshal(<-c.Send, &got))
		require.Equal(t, "notification", got["type"])
	}
	require.Empty(t, b.Send)
}

func TestClientClose(t *testing.T) {
	h := NewHub()
	c := NewClient(5)
	h.Register(c)
	c.Close()
	c.Close()

	require.False(t, h.Online(5))
	require.Zero(t, h.ConnectionCount())
	_, open := <-c.Send
	require.False(t, open)

	// broadcasting after close must not panic on the closed channel
	h.BroadcastToUser(5, "late")
}

func TestBroadcastDropsWhenFull(t *testing.T) {
	h := NewHub()
	c := NewClient(9)
	h.Register(c)
	for i := 0; i < cap(c.Send)+10; i++ {
		h.BroadcastToUser(9, i)
	}
	require.Len(t, c.Send, cap(c.Send))
}
