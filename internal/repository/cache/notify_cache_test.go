package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asquebay/print-queue-service/internal/model"
)

func notification(id string, receivers ...string) model.Notification {
	return model.Notification{
		ID:          id,
		Type:        model.NotificationTypeNotify,
		Message:     "message " + id,
		ReceiverIDs: receivers,
		CreatedAt:   time.Now(),
	}
}

func TestNotifyCache_AddNewestFirst(t *testing.T) {
	c := NewNotifyCache()
	c.Set("alice", nil)
	c.Set("bob", nil)

	c.Add(notification("n1", "alice"))
	c.Add(notification("n2", "alice", "bob"))

	alice, ok := c.Get("alice")
	require.True(t, ok)
	require.Len(t, alice, 2)
	assert.Equal(t, "n2", alice[0].ID)
	assert.Equal(t, "n1", alice[1].ID)

	bob, ok := c.Get("bob")
	require.True(t, ok)
	require.Len(t, bob, 1)
	assert.Equal(t, "n2", bob[0].ID)
}

func TestNotifyCache_AddSkipsUncachedUsers(t *testing.T) {
	c := NewNotifyCache()
	c.Set("alice", nil)

	c.Add(notification("n1", "alice", "bob"))

	_, ok := c.Get("bob")
	assert.False(t, ok)

	items, ok := c.Get("alice")
	require.True(t, ok)
	assert.Len(t, items, 1)
}

func TestNotifyCache_AddIsIdempotent(t *testing.T) {
	c := NewNotifyCache()
	c.Set("alice", nil)

	n := notification("n1", "alice")
	c.Add(n)
	c.Add(n)

	items, ok := c.Get("alice")
	require.True(t, ok)
	assert.Len(t, items, 1)
}

func TestNotifyCache_GetMiss(t *testing.T) {
	c := NewNotifyCache()

	items, ok := c.Get("nobody")
	assert.False(t, ok)
	assert.Nil(t, items)
}

func TestNotifyCache_SetReplacesAndCopies(t *testing.T) {
	c := NewNotifyCache()
	c.LoadAll([]model.Notification{notification("old", "alice")})

	fresh := []model.Notification{notification("n2", "alice"), notification("n1", "alice")}
	c.Set("alice", fresh)
	fresh[0].ID = "mutated"

	items, ok := c.Get("alice")
	require.True(t, ok)
	require.Len(t, items, 2)
	assert.Equal(t, "n2", items[0].ID)

	// пустой ящик тоже считается попаданием в кэш
	c.Set("bob", nil)
	items, ok = c.Get("bob")
	assert.True(t, ok)
	assert.Empty(t, items)
}

func TestNotifyCache_LoadAll(t *testing.T) {
	c := NewNotifyCache()

	c.LoadAll([]model.Notification{
		notification("n1", "alice"),
		notification("n2", "bob"),
		notification("n3", "alice"),
	})

	items, ok := c.Get("alice")
	require.True(t, ok)
	require.Len(t, items, 2)
	assert.Equal(t, "n3", items[0].ID)
}

func TestNotifyCache_ConcurrentAdd(t *testing.T) {
	c := NewNotifyCache()
	c.Set("alice", nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Add(notification(fmt.Sprintf("n%d", i), "alice"))
		}(i)
	}
	wg.Wait()

	items, ok := c.Get("alice")
	require.True(t, ok)
	assert.Len(t, items, 50)
}
