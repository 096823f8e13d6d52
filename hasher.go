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
	"bytes"
	"hash/maphash"

	"github.com/cespare/xxhash/v2"
)

// A Hasher defines a hash function and an equivalence relation over keys of
// type K. Equal keys must produce equal hashes for the same seed.
type Hasher[K any] interface {
	Hash(key K, seed maphash.Seed) uint64
	Equal(a, b K) bool
}

// ComparableHasher is the default Hasher for comparable keys. It hashes with
// the runtime's hash function for K (the one used by map[K]V) mixed with the
// per-table seed, and compares with ==.
type ComparableHasher[K comparable] struct{}

// Hash implements Hasher.
func (ComparableHasher[K]) Hash(key K, seed maphash.Seed) uint64 {
	return maphash.Comparable(seed, key)
}

// Equal implements Hasher.
func (ComparableHasher[K]) Equal(a, b K) bool {
	return a == b
}

// StringHasher hashes string keys with xxhash. The table seed is ignored, so
// bucket placement (and therefore iteration order) is reproducible across
// processes for the same sequence of operations.
type StringHasher struct{}

// Hash implements Hasher.
func (StringHasher) Hash(key string, _ maphash.Seed) uint64 {
	return xxhash.Sum64String(key)
}

// Equal implements Hasher.
func (StringHasher) Equal(a, b string) bool {
	return a == b
}

// BytesHasher hashes byte slice keys with xxhash and compares them by
// content. Byte slices are not comparable, so tables keyed by []byte must be
// constructed with this (or another explicit) Hasher. Keys must not be
// modified while they are stored in a table.
type BytesHasher struct{}

// Hash implements Hasher.
func (BytesHasher) Hash(key []byte, _ maphash.Seed) uint64 {
	return xxhash.Sum64(key)
}

// Equal implements Hasher.
func (BytesHasher) Equal(a, b []byte) bool {
	return bytes.Equal(a, b)
}
