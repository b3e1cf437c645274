package cfscan

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHotRing_BoundedAtMax(t *testing.T) {
	ring := NewHotRing()
	for i := 0; i < hotRingMax+10; i++ {
		ring.Add(fmt.Sprintf("10.%d.0.0/24", i))
	}
	assert.Equal(t, hotRingMax, ring.Len())
}

func TestHotRing_NoDuplicate(t *testing.T) {
	ring := NewHotRing()
	ring.Add("10.0.0.0/24")
	ring.Add("10.0.0.0/24")
	assert.Equal(t, 1, ring.Len())
}

func TestHotRing_SampleEmpty(t *testing.T) {
	ring := NewHotRing()
	_, ok := ring.Sample()
	assert.False(t, ok)
}

func TestHotRing_ConcurrentAdd(t *testing.T) {
	ring := NewHotRing()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ring.Add(fmt.Sprintf("10.%d.0.0/24", i))
		}(i)
	}
	wg.Wait()
	require.LessOrEqual(t, ring.Len(), hotRingMax)
}
