package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_StartsAtEpoch(t *testing.T) {
	clock := NewFakeClock()
	assert.Equal(t, Epoch, clock.Now())
	assert.Zero(t, clock.Elapsed())
}

func TestFakeClock_Advance(t *testing.T) {
	clock := NewFakeClock()

	clock.Advance(16 * time.Millisecond)
	clock.Advance(4 * time.Millisecond)

	assert.Equal(t, 20*time.Millisecond, clock.Elapsed())
	assert.Equal(t, Epoch.Add(20*time.Millisecond), clock.Now())
}

func TestFakeClock_Reset(t *testing.T) {
	clock := NewFakeClock()
	clock.Advance(time.Second)

	clock.Reset()
	assert.Equal(t, Epoch, clock.Now())
}

func TestFakeClock_ThreadSafe(t *testing.T) {
	clock := NewFakeClock()
	const goroutines = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			clock.Advance(time.Millisecond)
			_ = clock.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines*time.Millisecond, clock.Elapsed())
}
