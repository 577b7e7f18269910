package avl

// Node is a tree node carrying a key and an associated value.
//
// In intrusive mode the caller owns the node's storage and must set Key before
// handing it to Intrusive.Insert. Key must not be modified while the node is linked.
type Node[K, V any] struct {
	Key   K
	Value V

	left   *Node[K, V]
	right  *Node[K, V]
	parent *Node[K, V]
	owner  uint64 // identity of the linking tree, 0 if unlinked
	height int32
}

// Linked reports whether the node is currently part of a tree.
func (n *Node[K, V]) Linked() bool {
	return n.owner != 0
}

// Height returns the height of the subtree rooted at n (leaf = 1).
func (n *Node[K, V]) Height() int32 {
	if n == nil {
		return 0
	}
	return n.height
}

// Left returns the left child.
func (n *Node[K, V]) Left() *Node[K, V] { return n.left }

// Right returns the right child.
func (n *Node[K, V]) Right() *Node[K, V] { return n.right }

// Parent returns the parent link.
func (n *Node[K, V]) Parent() *Node[K, V] { return n.parent }

func (n *Node[K, V]) reset() {
	n.left = nil
	n.right = nil
	n.parent = nil
	n.owner = 0
	n.height = 0
}

func (n *Node[K, V]) balance() int32 {
	return n.left.Height() - n.right.Height()
}

func (n *Node[K, V]) updateHeight() {
	n.height = 1 + max(n.left.Height(), n.right.Height())
}

func minimum[K, V any](n *Node[K, V]) *Node[K, V] {
	if n == nil {
		return nil
	}
	for n.left != nil {
		n = n.left
	}
	return n
}

func maximum[K, V any](n *Node[K, V]) *Node[K, V] {
	if n == nil {
		return nil
	}
	for n.right != nil {
		n = n.right
	}
	return n
}

func successor[K, V any](n *Node[K, V]) *Node[K, V] {
	if n.right != nil {
		return minimum(n.right)
	}
	p := n.parent
	for p != nil && n == p.right {
		n = p
		p = p.parent
	}
	return p
}

func predecessor[K, V any](n *Node[K, V]) *Node[K, V] {
	if n.left != nil {
		return maximum(n.left)
	}
	p := n.parent
	for p != nil && n == p.left {
		n = p
		p = p.parent
	}
	return p
}
