package avl

import (
	"errors"
	"iter"
	"sync/atomic"
)

var (
	// ErrKeyNotFound is returned by At when the key is not present.
	ErrKeyNotFound = errors.New("avl: key not found")
	// ErrForeignNode is returned when a node owned by a different tree is inserted or erased.
	ErrForeignNode = errors.New("avl: node does not belong to this tree")
	// ErrNodeLinked is returned when inserting a node that is already linked into this tree.
	ErrNodeLinked = errors.New("avl: node is already linked")
	// ErrNilNode is returned when a nil node is passed to Insert.
	ErrNilNode = errors.New("avl: nil node")
	// ErrAllocFailed is returned when the node allocator is exhausted.
	ErrAllocFailed = errors.New("avl: node allocation failed")
)

// CompareFunc orders keys. It returns a negative number if a < b, zero if a == b
// and a positive number if a > b.
type CompareFunc[K any] func(a, b K) int

var treeIDs atomic.Uint64

// tree holds the balancing and traversal logic shared by Map and Intrusive.
type tree[K, V any] struct {
	root *Node[K, V]
	size int
	cmp  CompareFunc[K]
	id   uint64
}

func (t *tree[K, V]) init(cmp CompareFunc[K]) {
	if cmp == nil {
		panic("avl: nil compare func")
	}
	t.cmp = cmp
	t.id = treeIDs.Add(1)
}

// Len returns the number of nodes in the tree.
func (t *tree[K, V]) Len() int { return t.size }

// Empty reports whether the tree has no nodes.
func (t *tree[K, V]) Empty() bool { return t.size == 0 || t.root == nil }

// Root returns the root node, or nil for an empty tree.
func (t *tree[K, V]) Root() *Node[K, V] { return t.root }

// Height returns the height of the tree (0 when empty).
func (t *tree[K, V]) Height() int { return int(t.root.Height()) }

// Owns reports whether n is linked into this tree.
func (t *tree[K, V]) Owns(n *Node[K, V]) bool {
	return n != nil && n.owner == t.id
}

// Begin returns an iterator at the smallest key.
func (t *tree[K, V]) Begin() Iterator[K, V] { return t.iter(minimum(t.root)) }

// End returns the past-the-end iterator.
func (t *tree[K, V]) End() Iterator[K, V] { return t.iter(nil) }

// Last returns an iterator at the largest key.
func (t *tree[K, V]) Last() Iterator[K, V] { return t.iter(maximum(t.root)) }

// Min returns the node with the smallest key, or nil.
func (t *tree[K, V]) Min() *Node[K, V] { return minimum(t.root) }

// Max returns the node with the largest key, or nil.
func (t *tree[K, V]) Max() *Node[K, V] { return maximum(t.root) }

// Find returns an iterator at key, or End if the key is absent.
func (t *tree[K, V]) Find(key K) Iterator[K, V] {
	return t.iter(t.findNode(key))
}

// Contains reports whether key is present.
func (t *tree[K, V]) Contains(key K) bool {
	return t.findNode(key) != nil
}

// At returns the value stored under key.
func (t *tree[K, V]) At(key K) (V, error) {
	n := t.findNode(key)
	if n == nil {
		var zero V
		return zero, ErrKeyNotFound
	}
	return n.Value, nil
}

// LowerBound returns an iterator at the first key not less than key.
func (t *tree[K, V]) LowerBound(key K) Iterator[K, V] {
	var res *Node[K, V]
	for n := t.root; n != nil; {
		if t.cmp(n.Key, key) >= 0 {
			res = n
			n = n.left
		} else {
			n = n.right
		}
	}
	return t.iter(res)
}

// UpperBound returns an iterator at the first key greater than key.
func (t *tree[K, V]) UpperBound(key K) Iterator[K, V] {
	var res *Node[K, V]
	for n := t.root; n != nil; {
		if t.cmp(n.Key, key) > 0 {
			res = n
			n = n.left
		} else {
			n = n.right
		}
	}
	return t.iter(res)
}

// EqualRange returns the half-open range [LowerBound(key), UpperBound(key)).
func (t *tree[K, V]) EqualRange(key K) (Iterator[K, V], Iterator[K, V]) {
	return t.LowerBound(key), t.UpperBound(key)
}

// All yields key/value pairs in ascending key order.
func (t *tree[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for n := minimum(t.root); n != nil; n = successor(n) {
			if !yield(n.Key, n.Value) {
				return
			}
		}
	}
}

// Backward yields key/value pairs in descending key order.
func (t *tree[K, V]) Backward() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for n := maximum(t.root); n != nil; n = predecessor(n) {
			if !yield(n.Key, n.Value) {
				return
			}
		}
	}
}

// Nodes yields nodes in ascending key order. The node being visited may be
// erased by the consumer; nodes ahead of it must not be.
func (t *tree[K, V]) Nodes() iter.Seq[*Node[K, V]] {
	return func(yield func(*Node[K, V]) bool) {
		for n := minimum(t.root); n != nil; {
			next := successor(n)
			if !yield(n) {
				return
			}
			n = next
		}
	}
}

func (t *tree[K, V]) iter(n *Node[K, V]) Iterator[K, V] {
	return Iterator[K, V]{node: n, t: t}
}

func (t *tree[K, V]) findNode(key K) *Node[K, V] {
	n := t.root
	for n != nil {
		c := t.cmp(key, n.Key)
		switch {
		case c < 0:
			n = n.left
		case c > 0:
			n = n.right
		default:
			return n
		}
	}
	return nil
}

// link places n into the tree. If an equal key exists, the existing node is
// returned with false and n is left untouched.
func (t *tree[K, V]) link(n *Node[K, V]) (*Node[K, V], bool) {
	var parent *Node[K, V]
	var c int
	for cur := t.root; cur != nil; {
		parent = cur
		c = t.cmp(n.Key, cur.Key)
		switch {
		case c < 0:
			cur = cur.left
		case c > 0:
			cur = cur.right
		default:
			return cur, false
		}
	}

	n.left, n.right = nil, nil
	n.parent = parent
	n.height = 1
	n.owner = t.id
	switch {
	case parent == nil:
		t.root = n
	case c < 0:
		parent.left = n
	default:
		parent.right = n
	}
	t.size++
	t.rebalance(parent)
	return n, true
}

// unlink removes n from the tree and resets its links. The successor of n
// at the time of the call is returned.
func (t *tree[K, V]) unlink(n *Node[K, V]) *Node[K, V] {
	next := successor(n)

	if n.left != nil && n.right != nil {
		t.swapWithSuccessor(n, next)
	}

	child := n.left
	if child == nil {
		child = n.right
	}
	parent := n.parent
	if child != nil {
		child.parent = parent
	}
	t.replaceChild(parent, n, child)
	t.size--
	n.reset()
	t.rebalance(parent)
	return next
}

// swapWithSuccessor exchanges the structural positions of n and its in-order
// successor s (the minimum of n's right subtree). Keys and values stay with
// their nodes.
func (t *tree[K, V]) swapWithSuccessor(n, s *Node[K, V]) {
	np, nl, nr, nh := n.parent, n.left, n.right, n.height
	sp, sr, sh := s.parent, s.right, s.height

	t.replaceChild(np, n, s)
	s.parent = np
	s.left = nl
	nl.parent = s
	s.height = nh

	if sp == n {
		s.right = n
		n.parent = s
	} else {
		s.right = nr
		nr.parent = s
		sp.left = n
		n.parent = sp
	}

	n.left = nil
	n.right = sr
	if sr != nil {
		sr.parent = n
	}
	n.height = sh
}

func (t *tree[K, V]) replaceChild(parent, old, repl *Node[K, V]) {
	switch {
	case parent == nil:
		t.root = repl
	case parent.left == old:
		parent.left = repl
	default:
		parent.right = repl
	}
}

func (t *tree[K, V]) rotateLeft(x *Node[K, V]) *Node[K, V] {
	y := x.right
	x.right = y.left
	if y.left != nil {
		y.left.parent = x
	}
	y.parent = x.parent
	y.left = x
	x.parent = y
	x.updateHeight()
	y.updateHeight()
	return y
}

func (t *tree[K, V]) rotateRight(x *Node[K, V]) *Node[K, V] {
	y := x.left
	x.left = y.right
	if y.right != nil {
		y.right.parent = x
	}
	y.parent = x.parent
	y.right = x
	x.parent = y
	x.updateHeight()
	y.updateHeight()
	return y
}

// rebalance walks from n to the root restoring heights and the AVL balance.
func (t *tree[K, V]) rebalance(n *Node[K, V]) {
	for n != nil {
		parent := n.parent
		n.updateHeight()

		sub := n
		switch b := n.balance(); {
		case b > 1:
			if n.left.balance() < 0 {
				n.left = t.rotateLeft(n.left)
			}
			sub = t.rotateRight(n)
		case b < -1:
			if n.right.balance() > 0 {
				n.right = t.rotateRight(n.right)
			}
			sub = t.rotateLeft(n)
		}
		if sub != n {
			t.replaceChild(parent, n, sub)
		}
		n = parent
	}
}

// detachAll unlinks every node in post-order, calling fn on each.
func (t *tree[K, V]) detachAll(fn func(*Node[K, V])) {
	var walk func(n *Node[K, V])
	walk = func(n *Node[K, V]) {
		if n == nil {
			return
		}
		walk(n.left)
		walk(n.right)
		n.reset()
		if fn != nil {
			fn(n)
		}
	}
	walk(t.root)
	t.root = nil
	t.size = 0
}
