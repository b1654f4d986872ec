package main

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunGuard_SingleRunPerBill(t *testing.T) {
	g := newRunGuard()

	assert.True(t, g.acquire("hr-1"))
	assert.False(t, g.acquire("hr-1"))

	// Other bills are unaffected.
	assert.True(t, g.acquire("hr-2"))

	g.release("hr-1")
	assert.True(t, g.acquire("hr-1"))
}

func TestRunGuard_ConcurrentAcquireAdmitsOne(t *testing.T) {
	g := newRunGuard()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.acquire("hr-3") {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, won)
}
