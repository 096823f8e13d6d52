// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hashtable

import (
	"hash/maphash"
	"math"
	"math/rand"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func identityHash(key int, _ maphash.Seed) uint64 {
	return uint64(key)
}

func TestGrowthScenario(t *testing.T) {
	m := NewMap[int, int](0)
	require.EqualValues(t, 0, m.BucketCount())
	require.EqualValues(t, 0, m.Capacity())

	for i := 1; i <= 20; i++ {
		_, inserted, err := m.Insert(i, i*i)
		require.NoError(t, err)
		require.True(t, inserted)
		switch {
		case i <= 16:
			require.EqualValues(t, 16, m.BucketCount(), "insert %d", i)
		default:
			// The 17th insert exceeds 16 buckets * max load factor 1.
			require.EqualValues(t, 32, m.BucketCount(), "insert %d", i)
		}
		require.LessOrEqual(t, float64(m.Len()), m.MaxLoadFactor()*float64(m.BucketCount()))
	}

	for i := 1; i <= 20; i++ {
		v, ok := m.Get(i)
		require.True(t, ok)
		require.Equal(t, i*i, v)
	}

	seen := make(map[int]int)
	for it := m.Begin(); !it.Done(); it = it.Next() {
		seen[it.Key()]++
	}
	require.Len(t, seen, 20)
	for k, n := range seen {
		require.Equal(t, 1, n, "key %d", k)
	}
}

func TestEraseFromCollisionChain(t *testing.T) {
	m := NewMap[int, string](0, WithHash[Pair[int, string]](identityHash))
	for _, k := range []int{3, 19, 35} {
		_, _, err := m.Insert(k, "v")
		require.NoError(t, err)
	}
	require.EqualValues(t, 16, m.BucketCount())
	b := m.Bucket(3)
	require.Equal(t, b, m.Bucket(19))
	require.Equal(t, b, m.Bucket(35))
	require.Equal(t, 3, m.BucketSize(b))

	// Chains are built by prepending.
	var chain []int
	for it := m.BucketBegin(b); !it.Equal(m.BucketEnd(b)); it = it.Next() {
		chain = append(chain, it.Key())
	}
	require.Equal(t, []int{35, 19, 3}, chain)

	require.EqualValues(t, 1, m.EraseKey(19))
	require.Equal(t, 2, m.Len())
	require.Equal(t, 2, m.BucketSize(b))
	require.True(t, m.Contains(3))
	require.True(t, m.Contains(35))
	require.False(t, m.Contains(19))
	require.True(t, m.Find(19).Equal(m.End()))

	// Erase the tail and the head through iterators.
	next := m.Erase(m.Find(3))
	require.True(t, next.Equal(m.End()))
	next = m.Erase(m.Find(35))
	require.True(t, next.Done())
	require.True(t, m.Empty())
	require.Equal(t, 0, m.BucketSize(b))
}

func TestEraseReturnsSuccessor(t *testing.T) {
	m := NewMap[int, int](0)
	for i := 0; i < 200; i++ {
		_, _, err := m.Insert(i, i)
		require.NoError(t, err)
	}

	var visited int
	for it := m.Begin(); !it.Done(); {
		visited++
		if it.Key()%2 == 0 {
			it = m.Erase(it)
		} else {
			it = it.Next()
		}
	}
	require.Equal(t, 200, visited)
	require.Equal(t, 100, m.Len())
	for i := 0; i < 200; i++ {
		require.Equal(t, i%2 == 1, m.Contains(i))
	}
}

func TestExtract(t *testing.T) {
	a := &countingAllocator[Pair[string, []int]]{}
	m := NewMap[string, []int](0, WithAllocator[Pair[string, []int], string](a))
	_, _, err := m.Insert("a", []int{1, 2, 3})
	require.NoError(t, err)
	_, _, err = m.Insert("b", []int{4})
	require.NoError(t, err)

	p := m.Extract(m.Find("a"))
	require.Equal(t, Pair[string, []int]{Key: "a", Value: []int{1, 2, 3}}, p)
	require.Equal(t, 1, m.Len())
	require.False(t, m.Contains("a"))
	require.Equal(t, 1, a.nodeFree)

	require.Panics(t, func() { m.Extract(m.End()) })
}

func TestRehashPreservesMembership(t *testing.T) {
	m := NewMap[int, int](0)
	for i := 0; i < 500; i++ {
		_, _, err := m.Insert(rand.Int(), i)
		require.NoError(t, err)
	}
	expected := toBuiltinMap(m)

	for _, n := range []int{0, 1, 17, 512, 1000, 4099, 3} {
		require.NoError(t, m.Rehash(n))
		require.EqualValues(t, max(n, 500, minBuckets), m.BucketCount())
		require.Equal(t, 500, m.Len())
		for k, v := range expected {
			got, ok := m.Get(k)
			require.True(t, ok)
			require.Equal(t, v, got)
			require.Equal(t, m.Bucket(k), m.Find(k).Bucket())
		}
		require.Equal(t, 500, m.iterLen())
	}

	// Rehashing to the current size is a no-op and keeps iterators valid.
	it := m.Begin()
	require.NoError(t, m.Rehash(m.BucketCount()))
	require.NotPanics(t, func() { it.Next() })
}

func TestReserve(t *testing.T) {
	a := &countingAllocator[Pair[int, int]]{}
	m := NewMap[int, int](0, WithAllocator[Pair[int, int], int](a))

	require.NoError(t, m.Reserve(0))
	require.EqualValues(t, 0, a.bucketAlloc)

	require.NoError(t, m.Reserve(100))
	require.EqualValues(t, 100, m.BucketCount())
	require.EqualValues(t, 100, m.Capacity())
	require.EqualValues(t, 1, a.bucketAlloc)

	for i := 0; i < 100; i++ {
		_, _, err := m.Insert(i, i)
		require.NoError(t, err)
	}
	require.EqualValues(t, 100, m.BucketCount())
	require.EqualValues(t, 1, a.bucketAlloc)

	// A smaller reservation does not shrink.
	require.NoError(t, m.Reserve(10))
	require.EqualValues(t, 100, m.BucketCount())

	// The next single insert doubles the capacity.
	_, _, err := m.Insert(100, 100)
	require.NoError(t, err)
	require.EqualValues(t, 200, m.BucketCount())
}

func TestInitialCapacity(t *testing.T) {
	testCases := []struct {
		initialCapacity int
		maxLoadFactor   float64
		expectedBuckets int
	}{
		{0, 1, 16},
		{1, 1, 16},
		{16, 1, 16},
		{17, 1, 17},
		{100, 1, 100},
		{100, 4, 25},
		{100, 0.5, 200},
	}
	for _, c := range testCases {
		t.Run("", func(t *testing.T) {
			m := NewMap[int, int](c.initialCapacity,
				WithMaxLoadFactor[Pair[int, int], int](c.maxLoadFactor))
			require.EqualValues(t, 0, m.BucketCount())
			_, _, err := m.Insert(1, 1)
			require.NoError(t, err)
			require.EqualValues(t, c.expectedBuckets, m.BucketCount())
		})
	}
}

func TestSetMaxLoadFactor(t *testing.T) {
	m := NewMap[int, int](0)
	for i := 0; i < 64; i++ {
		_, _, err := m.Insert(i, i)
		require.NoError(t, err)
	}
	require.EqualValues(t, 64, m.BucketCount())
	require.InDelta(t, 1.0, m.LoadFactor(), 1e-9)

	// Violated: rehash to the smallest compliant bucket count.
	require.NoError(t, m.SetMaxLoadFactor(0.5))
	require.EqualValues(t, 128, m.BucketCount())
	require.InDelta(t, 0.5, m.LoadFactor(), 1e-9)

	// Not violated: no rehash.
	require.NoError(t, m.SetMaxLoadFactor(4))
	require.EqualValues(t, 128, m.BucketCount())
	require.EqualValues(t, 512, m.Capacity())

	for _, f := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		require.Panics(t, func() { _ = m.SetMaxLoadFactor(f) })
	}
	require.Panics(t, func() {
		NewMap[int, int](0, WithMaxLoadFactor[Pair[int, int], int](0))
	})
}

func TestLoadFactorBound(t *testing.T) {
	for _, f := range []float64{0.1, 0.3, 0.7, 1, 1.5, 3} {
		m := NewMap[int, int](0, WithMaxLoadFactor[Pair[int, int], int](f))
		for i := 0; i < 2000; i++ {
			var err error
			switch i % 3 {
			case 0:
				_, _, err = m.Insert(i, i)
			case 1:
				_, _, err = m.InsertOrAssign(i, i)
			default:
				_, _, err = m.Emplace(func(p *Pair[int, int]) { p.Key, p.Value = i, i })
			}
			require.NoError(t, err)
			require.LessOrEqual(t, float64(m.Len()), f*float64(m.BucketCount()), "f=%g i=%d", f, i)
		}
	}
}

func TestFractionalCapacity(t *testing.T) {
	m := NewMap[int, int](0, WithMaxLoadFactor[Pair[int, int], int](0.3))
	for i := 0; i < 4; i++ {
		_, _, err := m.Insert(i, i)
		require.NoError(t, err)
	}
	// 0.3*16 = 4.8: capacity rounds down so that Len <= 0.3*BucketCount.
	require.EqualValues(t, 16, m.BucketCount())
	require.EqualValues(t, 4, m.Capacity())

	_, _, err := m.Insert(4, 4)
	require.NoError(t, err)
	require.EqualValues(t, 27, m.BucketCount())
	require.EqualValues(t, 8, m.Capacity())
	require.LessOrEqual(t, float64(m.Len()), 0.3*float64(m.BucketCount()))
}

func TestExtremeMaxLoadFactor(t *testing.T) {
	t.Run("huge", func(t *testing.T) {
		m := NewMap[int, int](0, WithMaxLoadFactor[Pair[int, int], int](1e19))
		for i := 0; i < 100; i++ {
			_, _, err := m.Insert(i, i)
			require.NoError(t, err)
		}
		require.EqualValues(t, 16, m.BucketCount())
		require.Equal(t, math.MaxInt, m.Capacity())
		require.NoError(t, m.Rehash(0))
		require.EqualValues(t, 16, m.BucketCount())

		require.NoError(t, m.SetMaxLoadFactor(math.MaxFloat64))
		require.Equal(t, math.MaxInt, m.Capacity())
		require.EqualValues(t, 100, m.iterLen())
	})

	t.Run("tiny", func(t *testing.T) {
		m := NewMap[int, int](0, WithMaxLoadFactor[Pair[int, int], int](1e-300))
		_, _, err := m.Insert(1, 1)
		require.True(t, errors.Is(err, ErrAllocationFailed), "%v", err)
		require.True(t, m.Empty())
		require.EqualValues(t, 0, m.BucketCount())
		require.True(t, errors.Is(m.Reserve(1), ErrAllocationFailed))

		// An empty table needs no buckets.
		require.NoError(t, m.Rehash(0))
		require.EqualValues(t, 16, m.BucketCount())
		require.EqualValues(t, 0, m.Capacity())
	})

	t.Run("set", func(t *testing.T) {
		m := NewMap[int, int](0)
		for i := 0; i < 5; i++ {
			_, _, err := m.Insert(i, i)
			require.NoError(t, err)
		}
		err := m.SetMaxLoadFactor(1e-300)
		require.True(t, errors.Is(err, ErrAllocationFailed), "%v", err)
		require.EqualValues(t, 1, m.MaxLoadFactor())
		require.EqualValues(t, 16, m.BucketCount())
		require.EqualValues(t, 5, m.Len())
		for i := 0; i < 5; i++ {
			require.True(t, m.Contains(i))
		}

		require.True(t, errors.Is(m.Reserve(math.MaxInt), ErrAllocationFailed))
		require.True(t, errors.Is(m.Rehash(maxBuckets+1), ErrAllocationFailed))
		require.EqualValues(t, 16, m.BucketCount())

		_, inserted, err := m.Insert(100, 100)
		require.NoError(t, err)
		require.True(t, inserted)
	})
}

func TestAllocationFailure(t *testing.T) {
	t.Run("buckets", func(t *testing.T) {
		a := &countingAllocator[Pair[int, int]]{failBuckets: true}
		m := NewMap[int, int](0, WithAllocator[Pair[int, int], int](a))
		it, inserted, err := m.Insert(1, 1)
		require.True(t, errors.Is(err, ErrAllocationFailed), "%v", err)
		require.False(t, inserted)
		require.True(t, it.Done())
		require.Equal(t, 0, m.Len())
		require.Equal(t, 0, m.BucketCount())
		require.Equal(t, 0, a.nodeAlloc)

		require.True(t, errors.Is(m.Reserve(100), ErrAllocationFailed))
		require.True(t, errors.Is(m.Rehash(100), ErrAllocationFailed))
	})

	t.Run("growth", func(t *testing.T) {
		a := &countingAllocator[Pair[int, int]]{}
		m := NewMap[int, int](0, WithAllocator[Pair[int, int], int](a))
		for i := 0; i < 16; i++ {
			_, _, err := m.Insert(i, i)
			require.NoError(t, err)
		}
		a.failBuckets = true
		_, _, err := m.Insert(16, 16)
		require.True(t, errors.Is(err, ErrAllocationFailed))
		// The table is unchanged.
		require.Equal(t, 16, m.Len())
		require.EqualValues(t, 16, m.BucketCount())
		require.False(t, m.Contains(16))
		for i := 0; i < 16; i++ {
			require.True(t, m.Contains(i))
		}
		require.True(t, errors.Is(m.SetMaxLoadFactor(0.5), ErrAllocationFailed))

		a.failBuckets = false
		_, inserted, err := m.Insert(16, 16)
		require.NoError(t, err)
		require.True(t, inserted)
	})

	t.Run("nodes", func(t *testing.T) {
		a := &countingAllocator[Pair[int, int]]{}
		m := NewMap[int, int](0, WithAllocator[Pair[int, int], int](a))
		_, _, err := m.Insert(1, 1)
		require.NoError(t, err)

		a.failNodes = true
		_, _, err = m.Insert(2, 2)
		require.True(t, errors.Is(err, ErrAllocationFailed))
		_, _, err = m.InsertOrAssign(3, 3)
		require.True(t, errors.Is(err, ErrAllocationFailed))
		_, _, err = m.Emplace(func(p *Pair[int, int]) { p.Key = 4 })
		require.True(t, errors.Is(err, ErrAllocationFailed))
		require.Equal(t, 1, m.Len())

		// Existing keys need no allocation.
		_, inserted, err := m.Insert(1, 10)
		require.NoError(t, err)
		require.False(t, inserted)
		_, _, err = m.InsertOrAssign(1, 10)
		require.NoError(t, err)

		_, err = m.Clone()
		require.True(t, errors.Is(err, ErrAllocationFailed))

		dst := NewMap[int, int](0, WithAllocator[Pair[int, int], int](a))
		require.True(t, errors.Is(dst.CopyFrom(m), ErrAllocationFailed))
		require.True(t, dst.Empty())
		require.Equal(t, 0, dst.BucketCount())
	})
}

func TestStaleIterator(t *testing.T) {
	m := NewMap[int, int](0)
	for i := 0; i < 10; i++ {
		_, _, err := m.Insert(i, i)
		require.NoError(t, err)
	}

	it := m.Find(5)
	bit := m.BucketBegin(m.Bucket(5))
	_, _, err := m.Insert(100, 100)
	require.NoError(t, err)
	require.Panics(t, func() { it.Value() })
	require.Panics(t, func() { it.Next() })
	require.Panics(t, func() { it.Done() })
	require.Panics(t, func() { m.Erase(it) })
	require.Panics(t, func() { bit.Next() })

	it = m.Find(5)
	require.EqualValues(t, 1, m.EraseKey(6))
	require.Panics(t, func() { it.Key() })

	it = m.Find(5)
	require.NoError(t, m.Rehash(1000))
	require.Panics(t, func() { it.Get() })

	it = m.Find(5)
	m.Clear()
	require.Panics(t, func() { it.Get() })
}

func TestIteratorMisuse(t *testing.T) {
	m := NewMap[int, int](0)
	require.True(t, m.Begin().Done())
	require.True(t, m.End().Done())
	require.Panics(t, func() { m.End().Value() })
	require.Panics(t, func() { m.End().Next() })

	var zero MapIterator[int, int]
	require.True(t, zero.Done())
	require.Panics(t, func() { zero.Value() })

	_, _, err := m.Insert(1, 1)
	require.NoError(t, err)
	require.Panics(t, func() { m.End().Key() })
	require.Panics(t, func() { m.BucketEnd(0).Value() })
	require.Panics(t, func() { m.BucketBegin(-1) })
	require.Panics(t, func() { m.BucketBegin(m.BucketCount()) })
	require.Panics(t, func() { m.BucketSize(m.BucketCount()) })

	other := NewMap[int, int](0)
	_, _, err = other.Insert(1, 1)
	require.NoError(t, err)
	require.Panics(t, func() { m.Erase(other.Begin()) })
}

func TestEmptyTable(t *testing.T) {
	m := NewMap[int, int](0)
	require.Equal(t, 0, m.Bucket(42))
	require.Equal(t, 0, m.BucketSize(0))
	require.True(t, m.BucketBegin(0).Done())
	require.True(t, m.BucketBegin(0).Equal(m.BucketEnd(0)))
	require.Equal(t, 0.0, m.LoadFactor())
	require.Equal(t, 0, m.EraseKey(42))
	require.True(t, m.Find(42).Equal(m.End()))
	require.Equal(t, Stats{}, m.Stats())
}

func TestStats(t *testing.T) {
	m := NewMap[int, int](0, WithHash[Pair[int, int]](identityHash))
	for _, k := range []int{1, 17, 33, 2, 5} {
		_, _, err := m.Insert(k, k)
		require.NoError(t, err)
	}
	require.Equal(t, Stats{
		Len:         5,
		BucketCount: 16,
		UsedBuckets: 3,
		MaxChain:    3,
		LoadFactor:  5.0 / 16,
	}, m.Stats())
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	a := &countingAllocator[Pair[int, int]]{}
	m := NewMap[int, int](0,
		WithLogger[Pair[int, int], int](zap.New(core)),
		WithAllocator[Pair[int, int], int](a))

	for i := 0; i < 33; i++ {
		_, _, err := m.Insert(i, i)
		require.NoError(t, err)
	}
	rehashes := logs.FilterMessage("rehash").AllUntimed()
	require.Len(t, rehashes, 3)
	last := rehashes[2].ContextMap()
	require.EqualValues(t, 32, last["from"])
	require.EqualValues(t, 64, last["to"])
	require.EqualValues(t, 32, last["len"])

	a.failNodes = true
	_, _, err := m.Insert(100, 100)
	require.Error(t, err)
	failures := logs.FilterMessage("allocation failed").AllUntimed()
	require.Len(t, failures, 1)
	require.Equal(t, zapcore.WarnLevel, failures[0].Level)

	m.Clear()
	require.Equal(t, 1, logs.FilterMessage("clear").Len())
	m.Close()
	require.Equal(t, 1, logs.FilterMessage("close").Len())
}

// entity embeds its own key; it exercises Table with a custom extractor.
type entity struct {
	id   uint32
	name string
	hp   int
}

type entityID struct{}

func (entityID) Key(e *entity) uint32 { return e.id }

func TestCustomExtractor(t *testing.T) {
	tbl := New[entity, uint32, entityID](ComparableHasher[uint32]{}, 0)
	for i := uint32(0); i < 50; i++ {
		_, inserted, err := tbl.Insert(entity{id: i, name: "e", hp: 100})
		require.NoError(t, err)
		require.True(t, inserted)
	}

	it := tbl.Find(7)
	require.False(t, it.Done())
	require.Equal(t, uint32(7), it.Key())
	it.Value().hp -= 30
	require.Equal(t, 70, tbl.Find(7).Get().hp)

	var hp int
	for e := range tbl.All() {
		hp += e.hp
	}
	require.Equal(t, 50*100-30, hp)

	_, inserted, err := tbl.InsertOrAssign(entity{id: 7, name: "renamed"})
	require.NoError(t, err)
	require.False(t, inserted)
	require.Equal(t, "renamed", tbl.Find(7).Get().name)

	c, err := tbl.Clone()
	require.NoError(t, err)
	require.Equal(t, 50, c.Len())
	tbl.Swap(c)
	require.Equal(t, 50, tbl.Len())

	moved := New[entity, uint32, entityID](ComparableHasher[uint32]{}, 0)
	moved.MoveFrom(tbl)
	require.Equal(t, 50, moved.Len())
	require.True(t, tbl.Empty())
}
