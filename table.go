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

// Package hashtable implements a separate-chaining hash table whose memory is
// obtained from a pluggable Allocator. One engine, Table, backs both Map and
// Set; they differ only in the KeyExtractor that derives a key from a stored
// element.
//
// # Layout
//
// A Table with N buckets owns an array of N+1 node pointers. Slot i in [0,N)
// is the head of the chain of nodes whose key hashes to i (mod N), or nil.
// Slot N is the sentinel: it holds a marker node owned by the table which is
// never a live element. Because the sentinel slot is never nil, the scan for
// the next non-empty bucket needs no bounds check, and reaching slot N is
// exactly the end of iteration.
//
// New nodes are prepended to their chain, so within a bucket the chain order
// is reverse insertion order until the next rehash. A rehash relinks every
// node into a new array without copying it and preserves no ordering.
//
// # Growth
//
// The table grows when an insertion would push Len above
// MaxLoadFactor*BucketCount. Single element inserts double the capacity,
// which makes a run of inserts O(1) amortized. The bucket count is never
// below 16 once an array exists and only shrinks through Clear or an
// explicit Rehash.
//
// # Iterators
//
// Iterators are values computed from the table's state. Every structural
// change (an element linked or unlinked, a rehash, Clear, Swap, MoveFrom or
// CopyFrom) bumps the table's generation, and using an iterator from an
// earlier generation panics instead of observing relinked or freed nodes.
// Erase returns an iterator to the successor that is valid in the new
// generation.
//
// A Table is NOT goroutine-safe.
package hashtable

import (
	"fmt"
	"hash/maphash"
	"iter"
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const (
	// minBuckets is the smallest bucket count of a table with an allocated
	// bucket array.
	minBuckets = 16
	// maxBuckets bounds the bucket count so that the bucket array length
	// (maxBuckets+1) and the load-factor arithmetic stay within int range.
	maxBuckets = 1 << 30

	defaultMaxLoadFactor = 1.0
)

// ErrAllocationFailed is returned (wrapped) when the table's Allocator returns
// nil for a node or a bucket array. Test for it with errors.Is.
var ErrAllocationFailed = errors.New("hashtable: allocation failed")

// Table is the hash table engine. T is the stored element type, K the key
// type and X the stateless strategy that extracts a K from a T. Map and Set
// fix X; Table can be used directly for custom element types that embed their
// own key.
//
// The zero value for a Table is not usable; construct one with New.
type Table[T, K any, X KeyExtractor[T, K]] struct {
	config[T, K]
	seed maphash.Seed
	// buckets is bucketCount+1 in length, or nil when bucketCount is 0.
	// buckets[bucketCount] is always sentinel.
	buckets []*Node[T]
	// sentinel marks the end of the bucket array. It is compared by identity
	// and its value is never read.
	sentinel *Node[T]
	// The number of real buckets.
	bucketCount int
	// The number of elements (i.e. nodes reachable from buckets).
	used int
	// initialCapacity is applied by the first growth after the table was
	// created or cleared.
	initialCapacity int
	// gen is bumped by every structural mutation and stamped on iterators.
	gen uint64
}

// New constructs a new Table using hasher for hashing and key equality.
// initialCapacity is a hint for the number of elements the first growth will
// make room for; nothing is allocated until the first insertion (or an
// explicit Reserve or Rehash).
func New[T, K any, X KeyExtractor[T, K]](
	hasher Hasher[K], initialCapacity int, options ...option[T, K],
) *Table[T, K, X] {
	t := &Table[T, K, X]{}
	t.init(hasher, initialCapacity, options)
	return t
}

func (t *Table[T, K, X]) init(hasher Hasher[K], initialCapacity int, options []option[T, K]) {
	t.config = config[T, K]{
		allocator:     defaultAllocator[T]{},
		hash:          hasher.Hash,
		equal:         hasher.Equal,
		maxLoadFactor: defaultMaxLoadFactor,
		logger:        zap.NewNop(),
	}
	for _, op := range options {
		op.apply(&t.config)
	}
	assertf(t.maxLoadFactor > 0 && !math.IsInf(t.maxLoadFactor, 1),
		"max load factor must be positive and finite: %v", t.maxLoadFactor)

	t.seed = maphash.MakeSeed()
	t.sentinel = new(Node[T])
	t.initialCapacity = max(initialCapacity, 0)
	t.checkInvariants()
}

// Close releases every node and the bucket array back to the configured
// allocator. It is unnecessary to close a table using the default allocator.
// It is invalid to use a Table after it has been closed, though Close itself
// is idempotent.
func (t *Table[T, K, X]) Close() {
	if t.allocator == nil {
		return
	}
	t.release()
	t.logger.Debug("close")
	t.allocator = nil
}

// Empty reports whether the table holds no elements.
func (t *Table[T, K, X]) Empty() bool {
	return t.used == 0
}

// Len returns the number of elements in the table.
func (t *Table[T, K, X]) Len() int {
	return t.used
}

// BucketCount returns the number of buckets, 0 if no bucket array has been
// allocated.
func (t *Table[T, K, X]) BucketCount() int {
	return t.bucketCount
}

// BucketSize returns the length of the chain in bucket i.
func (t *Table[T, K, X]) BucketSize(i int) int {
	t.checkBucketIndex(i)
	if t.bucketCount == 0 {
		return 0
	}
	var n int
	for e := t.buckets[i]; e != nil; e = e.next {
		n++
	}
	return n
}

// Bucket returns the index of the bucket key belongs to, 0 if no bucket array
// has been allocated.
func (t *Table[T, K, X]) Bucket(key K) int {
	return t.bucketIndex(key)
}

// LoadFactor returns the average chain length, Len()/BucketCount().
func (t *Table[T, K, X]) LoadFactor() float64 {
	if t.bucketCount == 0 {
		return 0
	}
	return float64(t.used) / float64(t.bucketCount)
}

// MaxLoadFactor returns the load factor above which insertions grow the
// table.
func (t *Table[T, K, X]) MaxLoadFactor() float64 {
	return t.maxLoadFactor
}

// SetMaxLoadFactor changes the max load factor. If the current occupancy
// violates the new value the table is rehashed immediately to the smallest
// compliant bucket count. On error the previous max load factor is kept.
func (t *Table[T, K, X]) SetMaxLoadFactor(f float64) error {
	assertf(f > 0 && !math.IsInf(f, 1), "max load factor must be positive and finite: %v", f)
	old := t.maxLoadFactor
	t.maxLoadFactor = f
	if t.used > t.Capacity() {
		count, err := t.bucketsFor(t.used)
		if err == nil {
			err = t.Rehash(count)
		}
		if err != nil {
			t.maxLoadFactor = old
			return err
		}
	}
	return nil
}

// Capacity returns the number of elements the table can hold before an
// insertion grows it: floor(MaxLoadFactor * BucketCount). Rounding down keeps
// Len() <= MaxLoadFactor()*BucketCount() for fractional load factors.
// The result saturates at math.MaxInt.
func (t *Table[T, K, X]) Capacity() int {
	c := math.Floor(t.maxLoadFactor * float64(t.bucketCount))
	if c >= math.MaxInt {
		return math.MaxInt
	}
	return int(c)
}

// Find returns an iterator positioned at the element with the specified key,
// or End() if there is none.
func (t *Table[T, K, X]) Find(key K) Iterator[T, K, X] {
	if n, b := t.lookup(key); n != nil {
		return t.iterAt(n, b)
	}
	return t.End()
}

// Contains reports whether an element with the specified key is present.
func (t *Table[T, K, X]) Contains(key K) bool {
	n, _ := t.lookup(key)
	return n != nil
}

// Insert inserts value unless an element with an equal key is already
// present. It returns an iterator positioned at the element with value's key
// and whether the insertion took place.
func (t *Table[T, K, X]) Insert(value T) (Iterator[T, K, X], bool, error) {
	key := t.keyOf(&value)
	if n, b := t.lookup(key); n != nil {
		return t.iterAt(n, b), false, nil
	}
	n, b, err := t.link(key, value)
	if err != nil {
		return t.End(), false, err
	}
	return t.iterAt(n, b), true, nil
}

// InsertOrAssign inserts value, overwriting the element with an equal key if
// one is present. Overwriting is not a structural change: existing iterators
// stay valid. The returned flag reports whether a new element was inserted.
func (t *Table[T, K, X]) InsertOrAssign(value T) (Iterator[T, K, X], bool, error) {
	key := t.keyOf(&value)
	if n, b := t.lookup(key); n != nil {
		n.value = value
		return t.iterAt(n, b), false, nil
	}
	n, b, err := t.link(key, value)
	if err != nil {
		return t.End(), false, err
	}
	return t.iterAt(n, b), true, nil
}

// Emplace allocates a node, constructs its element in place by calling init
// and only then hashes the element's key. If an element with an equal key is
// already present the freshly constructed node is discarded and an iterator
// to the existing element is returned with inserted=false. init runs (and any
// side effects it has happen) in either case.
func (t *Table[T, K, X]) Emplace(init func(v *T)) (Iterator[T, K, X], bool, error) {
	n := t.allocator.AllocNode()
	if n == nil {
		return t.End(), false, t.allocFailed("node", 1)
	}
	init(&n.value)

	key := t.keyOf(&n.value)
	if e, b := t.lookup(key); e != nil {
		t.freeNode(n)
		return t.iterAt(e, b), false, nil
	}
	if err := t.incrementReserve(t.used + 1); err != nil {
		t.freeNode(n)
		return t.End(), false, err
	}
	b := t.bucketIndex(key)
	t.prepend(n, b)
	return t.iterAt(n, b), true, nil
}

// Erase removes the element it is positioned at and returns an iterator to
// its successor. it must be a valid, non-end iterator of t.
func (t *Table[T, K, X]) Erase(it Iterator[T, K, X]) Iterator[T, K, X] {
	t.checkOwned(it)
	next := it.Next()
	t.unlink(it.node, it.bucket)
	t.freeNode(it.node)
	next.gen = t.gen
	return next
}

// EraseKey removes the element with the specified key. It returns the number
// of elements removed (0 or 1).
func (t *Table[T, K, X]) EraseKey(key K) int {
	n, b := t.lookup(key)
	if n == nil {
		return 0
	}
	t.unlink(n, b)
	t.freeNode(n)
	return 1
}

// Extract removes the element it is positioned at and returns it. The node is
// released to the allocator but the element is handed to the caller rather
// than being reset.
func (t *Table[T, K, X]) Extract(it Iterator[T, K, X]) T {
	t.checkOwned(it)
	n := it.node
	t.unlink(n, it.bucket)
	v := n.value
	t.freeNode(n)
	return v
}

// Clear removes every element and releases the bucket array. The table
// returns to its initial empty state and can be reused.
func (t *Table[T, K, X]) Clear() {
	t.release()
	t.logger.Debug("clear")
}

// Rehash rebuilds the bucket array with max(n, ceil(Len()/MaxLoadFactor()),
// 16) buckets, relinking every node. It is a no-op if that equals the current
// bucket count. A bucket count above 1<<30 fails with ErrAllocationFailed. On
// error the table is unchanged.
func (t *Table[T, K, X]) Rehash(n int) error {
	need, err := t.bucketsFor(t.used)
	if err != nil {
		return err
	}
	count := max(n, need, minBuckets)
	if count == t.bucketCount {
		return nil
	}
	if count > maxBuckets {
		return t.tooManyBuckets(float64(count))
	}
	return t.resize(count)
}

// Reserve makes room for n elements without further growth. It is a no-op if
// n does not exceed Capacity().
func (t *Table[T, K, X]) Reserve(n int) error {
	if n <= t.Capacity() {
		return nil
	}
	count, err := t.bucketsFor(n)
	if err != nil {
		return err
	}
	return t.Rehash(count)
}

// Swap exchanges the contents, allocators and configuration of t and other.
// Iterators of either table are invalidated.
func (t *Table[T, K, X]) Swap(other *Table[T, K, X]) {
	if t == other {
		return
	}
	*t, *other = *other, *t
	gen := max(t.gen, other.gen) + 1
	t.gen, other.gen = gen, gen
}

// Clone returns a deep copy of t. The copy uses the same allocator,
// configuration and seed, so every element sits in the same bucket at the
// same chain position as in t.
func (t *Table[T, K, X]) Clone() (*Table[T, K, X], error) {
	c := &Table[T, K, X]{}
	if err := t.cloneInto(c); err != nil {
		return nil, err
	}
	return c, nil
}

// CopyFrom replaces the contents of t with a deep copy of src. t keeps its
// allocator and logger and adopts src's hashing and load factor. On error t
// is left empty.
func (t *Table[T, K, X]) CopyFrom(src *Table[T, K, X]) error {
	if t == src {
		return nil
	}
	t.release()
	t.hash, t.equal, t.seed = src.hash, src.equal, src.seed
	t.maxLoadFactor = src.maxLoadFactor
	t.initialCapacity = src.initialCapacity
	if err := t.copyNodes(src); err != nil {
		t.release()
		return err
	}
	t.checkInvariants()
	return nil
}

// MoveFrom releases the contents of t and transfers the bucket array, nodes
// and configuration of src to t. src is left empty but usable.
func (t *Table[T, K, X]) MoveFrom(src *Table[T, K, X]) {
	if t == src {
		return
	}
	t.release()
	gen := max(t.gen, src.gen) + 1
	*t = *src
	t.gen = gen

	src.buckets = nil
	src.bucketCount = 0
	src.used = 0
	src.sentinel = new(Node[T])
	src.gen = gen
	t.checkInvariants()
	src.checkInvariants()
}

// Begin returns an iterator positioned at the first element, or End() if the
// table is empty.
func (t *Table[T, K, X]) Begin() Iterator[T, K, X] {
	if t.bucketCount == 0 {
		return t.End()
	}
	return t.scan(0)
}

// End returns the iterator positioned one past the last element.
func (t *Table[T, K, X]) End() Iterator[T, K, X] {
	it := Iterator[T, K, X]{t: t, bucket: t.bucketCount, gen: t.gen}
	if t.bucketCount > 0 {
		it.node = t.buckets[t.bucketCount]
	}
	return it
}

// BucketBegin returns an iterator positioned at the head of bucket i.
func (t *Table[T, K, X]) BucketBegin(i int) BucketIterator[T, K, X] {
	t.checkBucketIndex(i)
	it := BucketIterator[T, K, X]{t: t, gen: t.gen}
	if t.bucketCount > 0 {
		it.node = t.buckets[i]
	}
	return it
}

// BucketEnd returns the iterator positioned one past the tail of bucket i.
func (t *Table[T, K, X]) BucketEnd(i int) BucketIterator[T, K, X] {
	t.checkBucketIndex(i)
	return BucketIterator[T, K, X]{t: t, gen: t.gen}
}

// All returns an iterator over pointers to the elements of the table. The
// table must not be structurally modified during iteration, except through
// the returned pointers' fields that do not affect the key.
func (t *Table[T, K, X]) All() iter.Seq[*T] {
	return func(yield func(*T) bool) {
		for it := t.Begin(); !it.Done(); it = it.Next() {
			if !yield(it.Value()) {
				return
			}
		}
	}
}

// Stats describes how elements are spread over buckets.
type Stats struct {
	Len         int
	BucketCount int
	// UsedBuckets is the number of non-empty buckets.
	UsedBuckets int
	// MaxChain is the length of the longest chain.
	MaxChain   int
	LoadFactor float64
}

// Stats computes bucket occupancy statistics by walking every chain.
func (t *Table[T, K, X]) Stats() Stats {
	s := Stats{
		Len:         t.used,
		BucketCount: t.bucketCount,
		LoadFactor:  t.LoadFactor(),
	}
	for i := 0; i < t.bucketCount; i++ {
		var n int
		for e := t.buckets[i]; e != nil; e = e.next {
			n++
		}
		if n > 0 {
			s.UsedBuckets++
		}
		s.MaxChain = max(s.MaxChain, n)
	}
	return s
}

func (t *Table[T, K, X]) keyOf(v *T) K {
	var x X
	return x.Key(v)
}

func (t *Table[T, K, X]) bucketIndex(key K) int {
	if t.bucketCount == 0 {
		return 0
	}
	return int(t.hash(key, t.seed) % uint64(t.bucketCount))
}

// bucketsFor returns the smallest bucket count able to hold n elements
// without exceeding the max load factor. It fails if that count is above
// maxBuckets.
func (t *Table[T, K, X]) bucketsFor(n int) (int, error) {
	f := math.Ceil(float64(n) / t.maxLoadFactor)
	if f > maxBuckets {
		return 0, t.tooManyBuckets(f)
	}
	c := int(f)
	for float64(c)*t.maxLoadFactor < float64(n) {
		c++
	}
	return c, nil
}

// lookup returns the node holding key and its bucket. The node is nil if key
// is not present.
func (t *Table[T, K, X]) lookup(key K) (*Node[T], int) {
	if t.bucketCount == 0 {
		return nil, 0
	}
	b := t.bucketIndex(key)
	for n := t.buckets[b]; n != nil; n = n.next {
		if t.equal(t.keyOf(&n.value), key) {
			return n, b
		}
	}
	return nil, b
}

// incrementReserve is Reserve for single element insertion paths: when growth
// is needed it at least doubles the capacity.
func (t *Table[T, K, X]) incrementReserve(n int) error {
	capacity := t.Capacity()
	if n <= capacity {
		return nil
	}
	if t.bucketCount == 0 {
		n = max(n, t.initialCapacity)
	}
	if capacity <= math.MaxInt/2 {
		n = max(n, 2*capacity)
	}
	count, err := t.bucketsFor(n)
	if err != nil {
		return err
	}
	return t.Rehash(count)
}

// link inserts value, whose key is known to be absent, growing the table
// first if needed. It returns the new node and its bucket.
func (t *Table[T, K, X]) link(key K, value T) (*Node[T], int, error) {
	if err := t.incrementReserve(t.used + 1); err != nil {
		return nil, 0, err
	}
	n := t.allocator.AllocNode()
	if n == nil {
		return nil, 0, t.allocFailed("node", 1)
	}
	n.value = value
	// The bucket is computed after incrementReserve as it may have rehashed.
	b := t.bucketIndex(key)
	t.prepend(n, b)
	return n, b, nil
}

func (t *Table[T, K, X]) prepend(n *Node[T], b int) {
	n.next = t.buckets[b]
	t.buckets[b] = n
	t.used++
	t.gen++
	t.checkInvariants()
}

// unlink removes n from the chain of bucket b using a predecessor scan.
func (t *Table[T, K, X]) unlink(n *Node[T], b int) {
	p := t.buckets[b]
	if p == n {
		t.buckets[b] = n.next
	} else {
		for p != nil && p.next != n {
			p = p.next
		}
		assertf(p != nil, "node not found in bucket %d", b)
		p.next = n.next
	}
	n.next = nil
	t.used--
	t.gen++
	t.checkInvariants()
}

// freeNode resets the node's payload and releases it.
func (t *Table[T, K, X]) freeNode(n *Node[T]) {
	*n = Node[T]{}
	t.allocator.FreeNode(n)
}

// scan returns an iterator positioned at the head of the first non-empty
// bucket at or after b. The sentinel slot is never nil, so the scan stops
// there at the latest and yields End().
func (t *Table[T, K, X]) scan(b int) Iterator[T, K, X] {
	for t.buckets[b] == nil {
		b++
	}
	return Iterator[T, K, X]{t: t, node: t.buckets[b], bucket: b, gen: t.gen}
}

func (t *Table[T, K, X]) iterAt(n *Node[T], b int) Iterator[T, K, X] {
	return Iterator[T, K, X]{t: t, node: n, bucket: b, gen: t.gen}
}

// resize allocates a bucket array of count buckets plus the sentinel slot,
// relinks every node into it and frees the old array.
func (t *Table[T, K, X]) resize(count int) error {
	buckets := t.allocator.AllocBuckets(count + 1)
	if buckets == nil {
		return t.allocFailed("buckets", count+1)
	}
	buckets[count] = t.sentinel

	for i := 0; i < t.bucketCount; i++ {
		for n := t.buckets[i]; n != nil; {
			next := n.next
			b := int(t.hash(t.keyOf(&n.value), t.seed) % uint64(count))
			n.next = buckets[b]
			buckets[b] = n
			n = next
		}
		t.buckets[i] = nil
	}

	old, oldCount := t.buckets, t.bucketCount
	t.buckets, t.bucketCount = buckets, count
	t.gen++
	if old != nil {
		old[oldCount] = nil
		t.allocator.FreeBuckets(old)
	}

	t.logger.Debug("rehash",
		zap.Int("from", oldCount), zap.Int("to", count), zap.Int("len", t.used))
	t.checkInvariants()
	return nil
}

// release frees every node and the bucket array and resets t to the empty
// state.
func (t *Table[T, K, X]) release() {
	for i := 0; i < t.bucketCount; i++ {
		for n := t.buckets[i]; n != nil; {
			next := n.next
			t.freeNode(n)
			n = next
		}
		t.buckets[i] = nil
	}
	if t.buckets != nil {
		t.buckets[t.bucketCount] = nil
		t.allocator.FreeBuckets(t.buckets)
	}
	t.buckets = nil
	t.bucketCount = 0
	t.used = 0
	t.gen++
	t.checkInvariants()
}

func (t *Table[T, K, X]) cloneInto(c *Table[T, K, X]) error {
	c.config = t.config
	c.seed = t.seed
	c.sentinel = new(Node[T])
	c.initialCapacity = t.initialCapacity
	if err := c.copyNodes(t); err != nil {
		c.release()
		return err
	}
	c.checkInvariants()
	return nil
}

// copyNodes fills the empty table t with copies of the nodes of src,
// replicating src's bucket count and chain order. t must use the same hash
// function and seed as src.
func (t *Table[T, K, X]) copyNodes(src *Table[T, K, X]) error {
	if src.bucketCount == 0 {
		return nil
	}
	buckets := t.allocator.AllocBuckets(src.bucketCount + 1)
	if buckets == nil {
		return t.allocFailed("buckets", src.bucketCount+1)
	}
	buckets[src.bucketCount] = t.sentinel
	t.buckets, t.bucketCount = buckets, src.bucketCount
	t.gen++

	for i := 0; i < src.bucketCount; i++ {
		tail := &t.buckets[i]
		for e := src.buckets[i]; e != nil; e = e.next {
			n := t.allocator.AllocNode()
			if n == nil {
				return t.allocFailed("node", 1)
			}
			n.value = e.value
			*tail = n
			tail = &n.next
			t.used++
		}
	}
	return nil
}

func (t *Table[T, K, X]) allocFailed(what string, n int) error {
	t.logger.Warn("allocation failed",
		zap.String("object", what), zap.Int("count", n), zap.Int("len", t.used))
	return errors.Wrapf(ErrAllocationFailed, "allocating %s (n=%d)", what, n)
}

func (t *Table[T, K, X]) tooManyBuckets(n float64) error {
	t.logger.Warn("allocation failed",
		zap.String("object", "buckets"), zap.Float64("count", n), zap.Int("len", t.used))
	return errors.Wrapf(ErrAllocationFailed, "%g buckets exceeds the limit of %d", n, maxBuckets)
}

func (t *Table[T, K, X]) checkBucketIndex(i int) {
	assertf(i >= 0 && (i < t.bucketCount || (t.bucketCount == 0 && i == 0)),
		"bucket index %d out of range [0,%d)", i, t.bucketCount)
}

// checkOwned asserts that it is a current, dereferenceable iterator of t.
func (t *Table[T, K, X]) checkOwned(it Iterator[T, K, X]) {
	assertf(it.t == t, "iterator belongs to a different table")
	it.checkDeref()
}

func (t *Table[T, K, X]) checkInvariants() {
	if invariants {
		if t.bucketCount == 0 {
			if t.buckets != nil {
				panic(fmt.Sprintf("invariant failed: bucket array allocated with 0 buckets\n%s", t.debugString()))
			}
			if t.used != 0 {
				panic(fmt.Sprintf("invariant failed: %d elements without buckets", t.used))
			}
			return
		}
		if t.bucketCount < minBuckets {
			panic(fmt.Sprintf("invariant failed: %d buckets, minimum is %d", t.bucketCount, minBuckets))
		}
		if len(t.buckets) != t.bucketCount+1 {
			panic(fmt.Sprintf("invariant failed: bucket array length %d, expected %d",
				len(t.buckets), t.bucketCount+1))
		}
		if t.buckets[t.bucketCount] != t.sentinel {
			panic(fmt.Sprintf("invariant failed: slot %d does not hold the sentinel\n%s",
				t.bucketCount, t.debugString()))
		}

		var used int
		for i := 0; i < t.bucketCount; i++ {
			for n := t.buckets[i]; n != nil; n = n.next {
				if n == t.sentinel {
					panic(fmt.Sprintf("invariant failed: sentinel linked into bucket %d", i))
				}
				key := t.keyOf(&n.value)
				if b := t.bucketIndex(key); b != i {
					panic(fmt.Sprintf("invariant failed: %v found in bucket %d, hashes to %d\n%s",
						key, i, b, t.debugString()))
				}
				for m := n.next; m != nil; m = m.next {
					if t.equal(t.keyOf(&m.value), key) {
						panic(fmt.Sprintf("invariant failed: duplicate key %v in bucket %d\n%s",
							key, i, t.debugString()))
					}
				}
				used++
			}
		}
		if used != t.used {
			panic(fmt.Sprintf("invariant failed: found %d elements, but used count is %d\n%s",
				used, t.used, t.debugString()))
		}
		if t.used > t.Capacity() {
			panic(fmt.Sprintf("invariant failed: %d elements exceed capacity %d\n%s",
				t.used, t.Capacity(), t.debugString()))
		}
	}
}

func (t *Table[T, K, X]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "buckets=%d  used=%d  max-load-factor=%g\n",
		t.bucketCount, t.used, t.maxLoadFactor)
	for i := 0; i < t.bucketCount; i++ {
		if t.buckets[i] == nil {
			continue
		}
		fmt.Fprintf(&buf, "  %4d:", i)
		for n := t.buckets[i]; n != nil; n = n.next {
			fmt.Fprintf(&buf, " %v", t.keyOf(&n.value))
		}
		buf.WriteString("\n")
	}
	return buf.String()
}

// assertf panics with an assertion failure if cond is false. It guards
// against programmer errors, which are not reported as errors.
func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(errors.AssertionFailedf(format, args...))
	}
}
