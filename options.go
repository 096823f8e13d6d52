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

	"go.uber.org/zap"
)

// config holds the construction-time parameters of a Table. It does not
// depend on the key extractor type.
type config[T, K any] struct {
	allocator     Allocator[T]
	hash          func(key K, seed maphash.Seed) uint64
	equal         func(a, b K) bool
	maxLoadFactor float64
	logger        *zap.Logger
}

// option provide an interface to do work on a Table while it is being created.
type option[T, K any] interface {
	apply(c *config[T, K])
}

type hashOption[T, K any] struct {
	hash func(key K, seed maphash.Seed) uint64
}

func (op hashOption[T, K]) apply(c *config[T, K]) {
	c.hash = op.hash
}

// WithHash is an option to specify the hash function to use for a table. The
// key equality of the table's Hasher is kept. The function must be consistent
// with that equality: equal keys must hash identically.
func WithHash[T, K any](hash func(key K, seed maphash.Seed) uint64) option[T, K] {
	return hashOption[T, K]{hash}
}

type hasherOption[T, K any] struct {
	hasher Hasher[K]
}

func (op hasherOption[T, K]) apply(c *config[T, K]) {
	c.hash = op.hasher.Hash
	c.equal = op.hasher.Equal
}

// WithHasher replaces both the hash function and the key equality of a table.
func WithHasher[T, K any](hasher Hasher[K]) option[T, K] {
	return hasherOption[T, K]{hasher}
}

// Allocator specifies an interface for allocating and releasing the memory
// used by a Table: one Node per element plus one bucket array. The default
// allocator utilizes Go's builtin new() and make() and allows the GC to
// reclaim memory.
//
// An allocator signals failure by returning nil; the table surfaces that as
// ErrAllocationFailed and performs no retry. A table borrows its allocator
// and must not be used after the allocator has been torn down.
//
// If the allocator is manually managing memory and requires that nodes and
// bucket arrays be freed then Table.Close must be called in order to ensure
// FreeNode and FreeBuckets are called.
type Allocator[T any] interface {
	// AllocNode should return a pointer equivalent to new(Node[T]), or nil.
	AllocNode() *Node[T]

	// FreeNode can optionally release a node that is guaranteed to have been
	// returned by AllocNode. The node is unlinked and its payload has already
	// been reset to the zero value.
	FreeNode(n *Node[T])

	// AllocBuckets should return a slice equivalent to make([]*Node[T], n),
	// or nil.
	AllocBuckets(n int) []*Node[T]

	// FreeBuckets can optionally release a bucket array that is guaranteed to
	// have been returned by AllocBuckets. Every slot has been reset to nil.
	FreeBuckets(b []*Node[T])
}

type defaultAllocator[T any] struct{}

func (defaultAllocator[T]) AllocNode() *Node[T] {
	return new(Node[T])
}

func (defaultAllocator[T]) FreeNode(n *Node[T]) {
}

func (defaultAllocator[T]) AllocBuckets(n int) []*Node[T] {
	return make([]*Node[T], n)
}

func (defaultAllocator[T]) FreeBuckets(b []*Node[T]) {
}

type allocatorOption[T, K any] struct {
	allocator Allocator[T]
}

func (op allocatorOption[T, K]) apply(c *config[T, K]) {
	c.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a table.
func WithAllocator[T, K any](allocator Allocator[T]) option[T, K] {
	return allocatorOption[T, K]{allocator}
}

type maxLoadFactorOption[T, K any] struct {
	maxLoadFactor float64
}

func (op maxLoadFactorOption[T, K]) apply(c *config[T, K]) {
	c.maxLoadFactor = op.maxLoadFactor
}

// WithMaxLoadFactor sets the average chain length above which an insertion
// grows the bucket array. It must be positive and finite. The default is 1,
// as in std-style unordered containers; chained tables that default to 16
// elements per bucket can be reproduced with WithMaxLoadFactor(16). Factors
// so small that the table would need more than 1<<30 buckets make growth
// fail with ErrAllocationFailed.
func WithMaxLoadFactor[T, K any](f float64) option[T, K] {
	return maxLoadFactorOption[T, K]{f}
}

type loggerOption[T, K any] struct {
	logger *zap.Logger
}

func (op loggerOption[T, K]) apply(c *config[T, K]) {
	if op.logger == nil {
		c.logger = zap.NewNop()
		return
	}
	c.logger = op.logger
}

// WithLogger routes the table's resize, clear and allocation-failure events
// to logger. Events are emitted at Debug level, except allocation failures
// which are emitted at Warn. By default nothing is logged.
func WithLogger[T, K any](logger *zap.Logger) option[T, K] {
	return loggerOption[T, K]{logger}
}
