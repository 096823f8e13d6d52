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

// SetIterator is the global iterator of a Set.
type SetIterator[K any] = Iterator[K, K, Identity[K]]

// SetBucketIterator is the per-bucket iterator of a Set.
type SetBucketIterator[K any] = BucketIterator[K, K, Identity[K]]

// Set is an unordered set backed by a chained Table whose elements are their
// own keys.
//
// A Set is NOT goroutine-safe.
type Set[K any] struct {
	Table[K, K, Identity[K]]
}

// NewSet constructs a new Set for comparable elements hashed with
// ComparableHasher.
func NewSet[K comparable](initialCapacity int, options ...option[K, K]) *Set[K] {
	return NewSetWithHasher[K](ComparableHasher[K]{}, initialCapacity, options...)
}

// NewSetWithHasher constructs a new Set whose elements are hashed and
// compared by hasher.
func NewSetWithHasher[K any](hasher Hasher[K], initialCapacity int, options ...option[K, K]) *Set[K] {
	s := &Set[K]{}
	s.init(hasher, initialCapacity, options)
	return s
}

// All returns an iterator over the set's elements. The set must not be
// structurally modified during iteration.
func (s *Set[K]) All() iter.Seq[K] {
	return func(yield func(K) bool) {
		for it := s.Begin(); !it.Done(); it = it.Next() {
			if !yield(it.Get()) {
				return
			}
		}
	}
}

// Clone returns a deep copy of s.
func (s *Set[K]) Clone() (*Set[K], error) {
	c := &Set[K]{}
	if err := s.cloneInto(&c.Table); err != nil {
		return nil, err
	}
	return c, nil
}

// CopyFrom replaces the contents of s with a deep copy of src.
func (s *Set[K]) CopyFrom(src *Set[K]) error {
	return s.Table.CopyFrom(&src.Table)
}

// MoveFrom transfers the contents of src to s, leaving src empty.
func (s *Set[K]) MoveFrom(src *Set[K]) {
	s.Table.MoveFrom(&src.Table)
}

// Swap exchanges the contents of s and other.
func (s *Set[K]) Swap(other *Set[K]) {
	s.Table.Swap(&other.Table)
}
