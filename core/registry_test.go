package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAllocateInRange(t *testing.T) {
	r := NewRegistry()

	for i := 0; i < 1000; i++ {
		id, err := r.Allocate()
		require.NoError(t, err)
		assert.NotZero(t, id)
		assert.True(t, r.IsInUse(id))
	}
	assert.Equal(t, 1000, r.InUse())
}

func TestRegistryConcurrentAllocationsAreUnique(t *testing.T) {
	r := NewRegistry()

	const workers = 16
	const perWorker = 200

	var mu sync.Mutex
	seen := make(map[uint16]struct{})

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id, err := r.Allocate()
				assert.NoError(t, err)

				mu.Lock()
				_, dup := seen[id]
				seen[id] = struct{}{}
				mu.Unlock()
				assert.False(t, dup, "identifier %d allocated twice", id)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
	assert.Equal(t, workers*perWorker, r.InUse())
}

func TestRegistryRelease(t *testing.T) {
	r := NewRegistry()

	id, err := r.Allocate()
	require.NoError(t, err)

	r.Release(id)
	assert.False(t, r.IsInUse(id))
	assert.Zero(t, r.InUse())

	// releasing an identifier that is not in use is a no-op
	r.Release(id)
	r.Release(id + 1)
	assert.Zero(t, r.InUse())
}

func TestRegistryAcquireReleaseOnce(t *testing.T) {
	r := NewRegistry()

	id, release, err := r.Acquire()
	require.NoError(t, err)
	assert.True(t, r.IsInUse(id))

	release()
	assert.False(t, r.IsInUse(id))

	// a later holder of the same identifier is not affected by a second release
	r.inUse[id] = struct{}{}
	release()
	assert.True(t, r.IsInUse(id))
}

func TestRegistryExhausted(t *testing.T) {
	r := NewRegistry()
	for id := 1; id <= 65535; id++ {
		r.inUse[uint16(id)] = struct{}{}
	}

	_, err := r.Allocate()
	assert.ErrorIs(t, err, ErrRegistryExhausted)

	_, release, err := r.Acquire()
	assert.ErrorIs(t, err, ErrRegistryExhausted)
	assert.NotPanics(t, release)

	r.Release(42)
	id, err := r.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint16(42), id)
}
