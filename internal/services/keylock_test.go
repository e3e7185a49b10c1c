package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("a")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, km.size())
}

func TestKeyedMutex_LockManyOppositeOrder(t *testing.T) {
	km := NewKeyedMutex()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			km.LockMany("a", "b")()
		}()
		go func() {
			defer wg.Done()
			km.LockMany("b", "a")()
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, km.size())
}

func TestKeyedMutex_LockManyDeduplicates(t *testing.T) {
	km := NewKeyedMutex()
	unlock := km.LockMany("a", "a")
	assert.Equal(t, 1, km.size())
	unlock()
	assert.Equal(t, 0, km.size())
}
