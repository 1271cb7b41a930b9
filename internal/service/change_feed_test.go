package service

import (
	"Storefront/internal/readmodel"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeFeed_FansOutStoreChanges(t *testing.T) {
	store := readmodel.NewStore()
	feed := NewChangeFeed(store, 8)
	defer feed.Close()

	a, cancelA := feed.Subscribe()
	b, cancelB := feed.Subscribe()
	defer cancelB()
	assert.Equal(t, 2, feed.Subscribers())

	store.SetNotificationUnread(3, readmodel.OriginPush)

	for _, ch := range []<-chan readmodel.Change{a, b} {
		c := <-ch
		assert.Equal(t, readmodel.ChangeNotificationCount, c.Kind)
		assert.Equal(t, int64(3), c.Count)
	}

	cancelA()
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, feed.Subscribers())
}

func TestChangeFeed_SlowSubscriberIsDropped(t *testing.T) {
	store := readmodel.NewStore()
	feed := NewChangeFeed(store, 1)
	defer feed.Close()

	ch, cancel := feed.Subscribe()
	defer cancel()

	store.SetNotificationUnread(1, readmodel.OriginPush)
	store.SetNotificationUnread(2, readmodel.OriginPush)

	first, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, int64(1), first.Count)
	_, ok = <-ch
	assert.False(t, ok, "channel is closed once the buffer overflows")
	assert.Equal(t, 0, feed.Subscribers())
}

func TestChangeFeed_ResetEndsSubscriptions(t *testing.T) {
	store := readmodel.NewStore()
	feed := NewChangeFeed(store, 8)
	defer feed.Close()

	ch, cancel := feed.Subscribe()
	defer cancel()

	store.SetNotificationUnread(2, readmodel.OriginPush)
	store.Reset()

	first := <-ch
	assert.Equal(t, readmodel.ChangeNotificationCount, first.Kind)
	reset, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, readmodel.ChangeReset, reset.Kind)
	_, ok = <-ch
	assert.False(t, ok, "subscriptions do not outlive a session boundary")
	assert.Equal(t, 0, feed.Subscribers())

	// 新订阅不受之前重置影响
	next, cancelNext := feed.Subscribe()
	defer cancelNext()
	store.SetNotificationUnread(5, readmodel.OriginPush)
	c := <-next
	assert.Equal(t, int64(5), c.Count)
}
