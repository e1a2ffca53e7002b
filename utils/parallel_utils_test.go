package utils

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionMap(t *testing.T) {
	{ // Test PartitionMap
		getHisto := func(K, Np int) (histo map[int]int) {
			pm := NewPartitionMap(Np, K)
			histo = make(map[int]int)
			for np := 0; np < pm.ParallelDegree; np++ {
				kMin, kMax := pm.GetBucketRange(np)
				histo[kMax-kMin]++
			}
			return
		}
		getTotal := func(histo map[int]int) (total int) {
			for key, count := range histo {
				total += key * count
			}
			return
		}
		assert.Equal(t, map[int]int{0: 30, 1: 2}, getHisto(2, 32))
		assert.Equal(t, map[int]int{1: 32}, getHisto(32, 32))
		assert.Equal(t, map[int]int{8: 32}, getHisto(256, 32))
		assert.Equal(t, map[int]int{8: 1, 9: 31}, getHisto(287, 32))
		assert.Equal(t, 287, getTotal(getHisto(287, 32)))
		for n := 64; n < 2000; n++ {
			var (
				keys   [2]float64
				keyNum int
			)
			histo := getHisto(n, 32)
			for key := range histo {
				keys[keyNum] = float64(key)
				keyNum++
			}
			if keyNum == 2 {
				assert.Equal(t, 1., math.Abs(keys[0]-keys[1])) // Maximum imbalance of one
			}
			assert.Equal(t, n, getTotal(histo))
		}
	}
	{ // Test buckets are contiguous and cover the range
		for maxIndex := 10; maxIndex < 500; maxIndex++ {
			pm := NewPartitionMap(5, maxIndex)
			var next int
			for np := 0; np < pm.ParallelDegree; np++ {
				kMin, kMax := pm.GetBucketRange(np)
				assert.Equal(t, next, kMin)
				assert.True(t, kMax >= kMin)
				next = kMax
			}
			assert.Equal(t, maxIndex, next)
		}
	}
	{ // Test parallel degree selection
		assert.Equal(t, 4, ParallelDegree(4, 100))
		assert.Equal(t, 3, ParallelDegree(8, 3))
		assert.Equal(t, 1, ParallelDegree(8, 0))
		assert.True(t, ParallelDegree(0, 1<<30) >= 1)
		assert.Panics(t, func() { NewPartitionMap(0, 10) })
	}
}

func TestRunPartitioned(t *testing.T) {
	for _, np := range []int{1, 3, 8, 40} {
		var (
			pm      = NewPartitionMap(np, 37)
			visits  = make([]int, 37)
			workers = make([]int, 37)
			mu      sync.Mutex
			seen    = make(map[int]bool)
		)
		pm.RunPartitioned(func(myThread, kMin, kMax int) {
			for k := kMin; k < kMax; k++ {
				visits[k]++
				workers[k] = myThread
			}
			mu.Lock()
			seen[myThread] = true
			mu.Unlock()
		})
		for k := 0; k < 37; k++ {
			assert.Equal(t, 1, visits[k])
			kMin, kMax := pm.GetBucketRange(workers[k])
			assert.True(t, k >= kMin && k < kMax)
		}
		// Empty buckets are never started
		assert.Equal(t, ParallelDegree(np, 37), len(seen))
	}
}
