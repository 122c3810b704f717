package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	locks := newKeyedMutex()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.Lock("T1001")
			defer release()
			counter++
		}()
	}
	wg.Wait()

	require.Equal(t, 50, counter)
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	locks := newKeyedMutex()

	releaseA := locks.Lock("T1001")
	releaseB := locks.Lock("S3003")
	releaseB()
	releaseA()
}

func TestKeyedMutexReleasesEntry(t *testing.T) {
	locks := newKeyedMutex()

	release := locks.Lock("T1001")
	release()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	require.Empty(t, locks.locks)
}
