package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBroadcaster_LatestWins(t *testing.T) {
	var b Broadcaster[int]
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(1)
	b.Publish(2)
	b.Publish(3)

	assert.Equal(t, 3, <-ch)
	select {
	case v := <-ch:
		t.Fatalf("unexpected extra value %d", v)
	default:
	}
}

func TestBroadcaster_MultipleSubscribers(t *testing.T) {
	var b Broadcaster[string]
	first, cancelFirst := b.Subscribe()
	second, cancelSecond := b.Subscribe()
	defer cancelSecond()

	b.Publish("hello")
	assert.Equal(t, "hello", <-first)
	assert.Equal(t, "hello", <-second)

	cancelFirst()
	cancelFirst()

	_, open := <-first
	assert.False(t, open, "cancelled channel should be closed")

	// Publishing after cancel must not panic
	b.Publish("again")
	assert.Equal(t, "again", <-second)
}
