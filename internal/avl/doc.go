// Package avl implements a generic AVL search tree with parent links.
//
// The tree comes in two flavours sharing one balancing core:
//
//   - Map owns its nodes and obtains them from an Allocator (the Go heap by
//     default, or a fixed-block pool).
//   - Intrusive links nodes supplied by the caller and never allocates.
//
// Keys are unique. Deleting a node with two children relinks its in-order
// successor into its structural position rather than copying values, so
// pointers to surviving nodes stay valid across any erase.
//
// Each tree stamps the nodes it links with its identity. Inserting or erasing
// a node stamped by another tree fails with ErrForeignNode.
package avl
