package cart

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter(t *testing.T) {
	c := NewCounter()
	assert.Equal(t, 0, c.Value())

	c.Set(3)
	assert.Equal(t, 3, c.Value())

	c.Increment(2)
	assert.Equal(t, 5, c.Value())

	c.Decrement(4)
	assert.Equal(t, 1, c.Value())

	c.Decrement(10)
	assert.Equal(t, 0, c.Value(), "never negative")

	c.Set(-5)
	assert.Equal(t, 0, c.Value())

	c.Set(7)
	c.Reset()
	assert.Equal(t, 0, c.Value())
}

func TestCounter_Concurrent(t *testing.T) {
	c := NewCounter()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); c.Increment(2) }()
		go func() { defer wg.Done(); c.Decrement(1) }()
	}
	wg.Wait()
	assert.GreaterOrEqual(t, c.Value(), 0)
	assert.LessOrEqual(t, c.Value(), 100)
}

func TestCounter_Subscribe(t *testing.T) {
	c := NewCounter()
	updates, cancel := c.Subscribe()
	defer cancel()

	c.Set(4)
	assert.Equal(t, 4, <-updates)

	c.Decrement(9)
	assert.Equal(t, 0, <-updates)
}

func TestCount(t *testing.T) {
	var c Cart
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": 1,
		"items": [
			{"id": 10, "product": {"id": 1, "name": "Tee", "slug": "tee", "base_price": "10.00"}, "variant": null, "quantity": 2},
			{"id": 11, "product": {"id": 2, "name": "Cap", "slug": "cap", "base_price": "5.00"}, "variant": {"id": 7, "sku": "CAP-RED", "effective_price": "6.00", "stock_quantity": 3}, "quantity": 3}
		],
		"total": "38.00"
	}`), &c))

	assert.Equal(t, 5, Count(c))
	assert.Equal(t, "CAP-RED", c.Items[1].Variant.SKU)
	assert.Equal(t, 0, Count(Cart{}))
}
