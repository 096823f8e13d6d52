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

import "iter"

// MapIterator is the global iterator of a Map.
type MapIterator[K, V any] = Iterator[Pair[K, V], K, PairKey[K, V]]

// MapBucketIterator is the per-bucket iterator of a Map.
type MapBucketIterator[K, V any] = BucketIterator[Pair[K, V], K, PairKey[K, V]]

// Map is an unordered map from keys to values backed by a chained Table whose
// elements are Pairs. Every Table operation is available on a Map; the
// methods below only adapt signatures to keys and values.
//
// A Map is NOT goroutine-safe.
type Map[K, V any] struct {
	Table[Pair[K, V], K, PairKey[K, V]]
}

// NewMap constructs a new Map for comparable keys hashed with
// ComparableHasher. See New for the meaning of initialCapacity.
func NewMap[K comparable, V any](
	initialCapacity int, options ...option[Pair[K, V], K],
) *Map[K, V] {
	return NewMapWithHasher[K, V](ComparableHasher[K]{}, initialCapacity, options...)
}

// NewMapWithHasher constructs a new Map whose keys are hashed and compared by
// hasher. Keys need not be comparable.
func NewMapWithHasher[K, V any](
	hasher Hasher[K], initialCapacity int, options ...option[Pair[K, V], K],
) *Map[K, V] {
	m := &Map[K, V]{}
	m.init(hasher, initialCapacity, options)
	return m
}

// Insert inserts key/value unless key is already present, in which case the
// existing value is left untouched and inserted is false.
func (m *Map[K, V]) Insert(key K, value V) (_ MapIterator[K, V], inserted bool, _ error) {
	return m.Table.Insert(Pair[K, V]{Key: key, Value: value})
}

// InsertOrAssign inserts key/value, overwriting the value if key is already
// present. inserted reports whether key was absent.
func (m *Map[K, V]) InsertOrAssign(key K, value V) (_ MapIterator[K, V], inserted bool, _ error) {
	return m.Table.InsertOrAssign(Pair[K, V]{Key: key, Value: value})
}

// Get retrieves the value from the map for the specified key, return ok=false
// if the key is not present.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	if n, _ := m.lookup(key); n != nil {
		return n.value.Value, true
	}
	return value, false
}

// All returns an iterator over the map's key/value pairs. The map must not be
// structurally modified during iteration.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for it := m.Begin(); !it.Done(); it = it.Next() {
			p := it.Value()
			if !yield(p.Key, p.Value) {
				return
			}
		}
	}
}

// Keys returns an iterator over the map's keys.
func (m *Map[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for it := m.Begin(); !it.Done(); it = it.Next() {
			if !yield(it.Value().Key) {
				return
			}
		}
	}
}

// Values returns an iterator over the map's values.
func (m *Map[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		for it := m.Begin(); !it.Done(); it = it.Next() {
			if !yield(it.Value().Value) {
				return
			}
		}
	}
}

// Clone returns a deep copy of m.
func (m *Map[K, V]) Clone() (*Map[K, V], error) {
	c := &Map[K, V]{}
	if err := m.cloneInto(&c.Table); err != nil {
		return nil, err
	}
	return c, nil
}

// CopyFrom replaces the contents of m with a deep copy of src.
func (m *Map[K, V]) CopyFrom(src *Map[K, V]) error {
	return m.Table.CopyFrom(&src.Table)
}

// MoveFrom transfers the contents of src to m, leaving src empty.
func (m *Map[K, V]) MoveFrom(src *Map[K, V]) {
	m.Table.MoveFrom(&src.Table)
}

// Swap exchanges the contents of m and other.
func (m *Map[K, V]) Swap(other *Map[K, V]) {
	m.Table.Swap(&other.Table)
}
