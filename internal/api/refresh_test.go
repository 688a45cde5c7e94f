package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinator_SingleLeader(t *testing.T) {
	var c Coordinator
	assert.False(t, c.InFlight())

	leader, w := c.AcquireOrAwait()
	require.True(t, leader)
	assert.Nil(t, w)
	assert.True(t, c.InFlight())

	leader, w = c.AcquireOrAwait()
	assert.False(t, leader)
	require.NotNil(t, w)
	assert.Equal(t, 1, c.Pending())

	go func() {
		_, _ = w.Wait(context.Background())
		w.Release()
	}()
	c.Settle("token", nil)

	assert.False(t, c.InFlight())
	assert.Equal(t, 0, c.Pending())

	// The next refresh gets a new leader
	leader, _ = c.AcquireOrAwait()
	assert.True(t, leader)
	c.Settle("", nil)
}

func TestCoordinator_FIFORelease(t *testing.T) {
	var c Coordinator
	leader, _ := c.AcquireOrAwait()
	require.True(t, leader)

	const n = 6
	waiters := make([]*Waiter, n)
	for i := range waiters {
		isLeader, w := c.AcquireOrAwait()
		require.False(t, isLeader)
		waiters[i] = w
	}
	require.Equal(t, n, c.Pending())

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	// Start goroutines in reverse so scheduling order cannot explain the result
	for i := n - 1; i >= 0; i-- {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, err := waiters[i].Wait(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "fresh", token)

			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			waiters[i].Release()
		}(i)
	}

	c.Settle("fresh", nil)
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, order)
}

func TestCoordinator_NextWaiterWaitsForRelease(t *testing.T) {
	var c Coordinator
	c.AcquireOrAwait()
	_, first := c.AcquireOrAwait()
	_, second := c.AcquireOrAwait()

	secondDone := make(chan struct{})
	go func() {
		_, _ = second.Wait(context.Background())
		close(secondDone)
		second.Release()
	}()

	settled := make(chan struct{})
	go func() {
		c.Settle("fresh", nil)
		close(settled)
	}()

	_, err := first.Wait(context.Background())
	require.NoError(t, err)

	select {
	case <-secondDone:
		t.Fatal("second waiter released before the first acknowledged")
	case <-time.After(50 * time.Millisecond):
	}

	first.Release()
	<-secondDone
	<-settled
}

func TestCoordinator_SettleError(t *testing.T) {
	var c Coordinator
	c.AcquireOrAwait()

	boom := errors.New("refresh failed")
	const n = 3
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		_, w := c.AcquireOrAwait()
		wg.Add(1)
		go func(i int, w *Waiter) {
			defer wg.Done()
			defer w.Release()
			_, errs[i] = w.Wait(context.Background())
		}(i, w)
	}

	c.Settle("", boom)
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, boom)
	}
}

func TestCoordinator_CancelledWaiterDoesNotBlockSettle(t *testing.T) {
	var c Coordinator
	c.AcquireOrAwait()
	_, w := c.AcquireOrAwait()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := w.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	done := make(chan struct{})
	go func() {
		c.Settle("fresh", nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Settle blocked on a cancelled waiter")
	}
}
