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

// Node holds one element of a Table and the link to the next node of the same
// bucket chain. A node is owned by exactly one reference: the bucket slot
// holding it or the next field of its predecessor.
type Node[T any] struct {
	value T
	next  *Node[T]
}

// Pair is the element type of a Map.
type Pair[K, V any] struct {
	Key   K
	Value V
}

// KeyExtractor derives the key used for hashing and equality from a stored
// element. Implementations are stateless; the table calls methods on the zero
// value of the type.
type KeyExtractor[T, K any] interface {
	Key(v *T) K
}

// PairKey extracts Pair.Key. It is the extractor of Map.
type PairKey[K, V any] struct{}

// Key implements KeyExtractor.
func (PairKey[K, V]) Key(p *Pair[K, V]) K {
	return p.Key
}

// Identity uses the element as its own key. It is the extractor of Set.
type Identity[K any] struct{}

// Key implements KeyExtractor.
func (Identity[K]) Key(v *K) K {
	return *v
}
