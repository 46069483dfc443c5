package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"mainq/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	ctx := context.Background()
	assert.NoError(t, n.PublishNotification(ctx, &models.Notification{RecipientID: "u-1"}))
	assert.NoError(t, n.PublishCatalogChange(ctx, "game"))
	assert.NoError(t, n.StartPatternSubscriber(ctx, func(string, string) {}))

	var nilNotifier *Notifier
	assert.NoError(t, nilNotifier.PublishCatalogChange(ctx, "lab"))
}

func TestUserChannel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "notifications:user:u-42", UserChannel("u-42"))

	id, ok := UserFromChannel("notifications:user:u-42")
	assert.True(t, ok)
	assert.Equal(t, "u-42", id)

	_, ok = UserFromChannel("notifications:user:")
	assert.False(t, ok)
	_, ok = UserFromChannel("chat:conv:1")
	assert.False(t, ok)
}

func TestHub_Dispatch(t *testing.T) {
	h := NewHub()
	alice, err := h.Register("alice", nil)
	require.NoError(t, err)
	bob, err := h.Register("bob", nil)
	require.NoError(t, err)
	anon, err := h.Register("", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, h.Count())
	assert.True(t, h.IsOnline("alice"))

	h.Dispatch(UserChannel("alice"), "for-alice")
	assert.Equal(t, "for-alice", string(<-alice.Send))
	assert.Empty(t, bob.Send)
	assert.Empty(t, anon.Send)

	h.Dispatch(CatalogChannel, "changed")
	for _, c := range []*Client{alice, bob, anon} {
		assert.Equal(t, "changed", string(<-c.Send))
	}

	h.Dispatch("bogus", "ignored")
	assert.Empty(t, alice.Send)
}

func TestHub_UnregisterTwice(t *testing.T) {
	h := NewHub()
	c, err := h.Register("alice", nil)
	require.NoError(t, err)

	h.UnregisterClient(c)
	h.UnregisterClient(c)
	assert.False(t, h.IsOnline("alice"))
	assert.Equal(t, 0, h.Count())
}

func TestHub_PerUserLimit(t *testing.T) {
	h := NewHub()
	for i := 0; i < maxConnsPerUser; i++ {
		_, err := h.Register("alice", nil)
		require.NoError(t, err)
	}
	_, err := h.Register("alice", nil)
	assert.ErrorIs(t, err, ErrUserFull)
}

func TestHub_ShutdownRejectsNewClients(t *testing.T) {
	h := NewHub()
	c, err := h.Register("alice", nil)
	require.NoError(t, err)

	require.NoError(t, h.Shutdown(context.Background()))
	_, ok := <-c.Send
	assert.False(t, ok)

	_, err = h.Register("alice", nil)
	assert.ErrorIs(t, err, ErrHubClosed)
	assert.NoError(t, h.Shutdown(context.Background()))
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	h := NewHub()
	c, err := h.Register("alice", nil)
	require.NoError(t, err)

	for i := 0; i < sendBuffer; i++ {
		c.TrySend([]byte("x"))
	}
	assert.NotPanics(t, func() { c.TrySend([]byte("overflow")) })
	assert.Len(t, c.Send, sendBuffer)

	h.UnregisterClient(c)
	assert.NotPanics(t, func() { c.TrySend([]byte("after close")) })
}

func TestClient_AnswersAppPing(t *testing.T) {
	h := NewHub()
	c, err := h.Register("", nil)
	require.NoError(t, err)

	c.handleFrame([]byte(`{"type":"ping"}`))
	c.handleFrame([]byte(`not json`))
	c.handleFrame([]byte(`{"type":"mark_read"}`))

	require.Len(t, c.Send, 1)
	var ev Event
	require.NoError(t, json.Unmarshal(<-c.Send, &ev))
	assert.Equal(t, EventPong, ev.Type)
}

func TestHub_WiringDeliversPublishedNotification(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := NewNotifier(rdb)
	h := NewHub()
	require.NoError(t, h.StartWiring(ctx, n))

	client, err := h.Register("u-1", nil)
	require.NoError(t, err)

	require.NoError(t, n.PublishNotification(ctx, &models.Notification{
		ID:           7,
		RecipientID:  "u-1",
		SenderName:   "Bu Sari",
		Type:         models.NotificationComment,
		ContentTitle: "Kuis Pecahan",
		Link:         "/games/kuis-pecahan-abc123",
	}))

	var raw []byte
	require.Eventually(t, func() bool {
		select {
		case raw = <-client.Send:
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	var event struct {
		Type    string              `json:"type"`
		Payload models.Notification `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &event))
	assert.Equal(t, EventNotification, event.Type)
	assert.Equal(t, "Kuis Pecahan", event.Payload.ContentTitle)
	assert.Equal(t, uint(7), event.Payload.ID)
}
