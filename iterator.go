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

// Iterator walks every element of a Table bucket by bucket, skipping empty
// buckets. It is a non-owning value; copying it is cheap.
//
// An Iterator is invalidated by any structural change to its table. Using an
// invalidated iterator, or dereferencing End(), panics.
type Iterator[T, K any, X KeyExtractor[T, K]] struct {
	t    *Table[T, K, X]
	node *Node[T]
	// bucket is the index of the slot holding node's chain. It equals
	// t.bucketCount, the sentinel slot, at End().
	bucket int
	gen    uint64
}

// Done reports whether the iterator is positioned at End(). The zero Iterator
// is done.
func (it Iterator[T, K, X]) Done() bool {
	if it.t == nil {
		return true
	}
	it.checkGen()
	return it.bucket == it.t.bucketCount
}

// Next returns an iterator positioned at the following element: the next
// node of the chain, or the head of the next non-empty bucket, or End().
func (it Iterator[T, K, X]) Next() Iterator[T, K, X] {
	it.checkDeref()
	if it.node.next != nil {
		it.node = it.node.next
		return it
	}
	return it.t.scan(it.bucket + 1)
}

// Value returns a pointer to the element. The key of the element must not be
// modified through it.
func (it Iterator[T, K, X]) Value() *T {
	it.checkDeref()
	return &it.node.value
}

// Get returns a copy of the element.
func (it Iterator[T, K, X]) Get() T {
	it.checkDeref()
	return it.node.value
}

// Key returns the key of the element.
func (it Iterator[T, K, X]) Key() K {
	it.checkDeref()
	var x X
	return x.Key(&it.node.value)
}

// Bucket returns the index of the bucket the iterator is positioned in.
func (it Iterator[T, K, X]) Bucket() int {
	it.checkGen()
	return it.bucket
}

// Equal reports whether it and o are positioned at the same node of the same
// table.
func (it Iterator[T, K, X]) Equal(o Iterator[T, K, X]) bool {
	return it.t == o.t && it.node == o.node && it.bucket == o.bucket
}

func (it Iterator[T, K, X]) checkGen() {
	assertf(it.gen == it.t.gen,
		"stale iterator: table generation %d, iterator generation %d", it.t.gen, it.gen)
}

func (it Iterator[T, K, X]) checkDeref() {
	assertf(it.t != nil, "zero iterator")
	it.checkGen()
	assertf(it.bucket < it.t.bucketCount, "dereferencing end iterator")
}

// BucketIterator walks the chain of a single bucket. BucketEnd(i) is the nil
// position after the chain's tail.
type BucketIterator[T, K any, X KeyExtractor[T, K]] struct {
	t    *Table[T, K, X]
	node *Node[T]
	gen  uint64
}

// Done reports whether the iterator is past the tail of its chain.
func (it BucketIterator[T, K, X]) Done() bool {
	if it.t != nil {
		it.checkGen()
	}
	return it.node == nil
}

// Next returns an iterator positioned at the following node of the chain.
func (it BucketIterator[T, K, X]) Next() BucketIterator[T, K, X] {
	it.checkDeref()
	it.node = it.node.next
	return it
}

// Value returns a pointer to the element. The key of the element must not be
// modified through it.
func (it BucketIterator[T, K, X]) Value() *T {
	it.checkDeref()
	return &it.node.value
}

// Get returns a copy of the element.
func (it BucketIterator[T, K, X]) Get() T {
	it.checkDeref()
	return it.node.value
}

// Key returns the key of the element.
func (it BucketIterator[T, K, X]) Key() K {
	it.checkDeref()
	var x X
	return x.Key(&it.node.value)
}

// Equal reports whether it and o are positioned at the same node.
func (it BucketIterator[T, K, X]) Equal(o BucketIterator[T, K, X]) bool {
	return it.node == o.node
}

func (it BucketIterator[T, K, X]) checkGen() {
	assertf(it.gen == it.t.gen,
		"stale bucket iterator: table generation %d, iterator generation %d", it.t.gen, it.gen)
}

func (it BucketIterator[T, K, X]) checkDeref() {
	assertf(it.t != nil && it.node != nil, "dereferencing end bucket iterator")
	it.checkGen()
}
