// Package btree implements the copy-on-write B-tree insert and lookup
// operations described in spec.md §4.6: every modified node is written to a
// brand new offset rather than patched in place, and the single pointer
// referencing it (the root pointer, or a child slot inside its parent) is
// rewritten last, after a barrier flush, so a crash can never observe a
// parent pointing at a half-written child. The one exception is replacing an
// existing key's value: that overwrites the single 8-byte value pointer
// inside the node image in place.
//
// Grounded on original_source/btree.c's btree_add/btree_add_nonfull/
// btree_split_child/btree_find.
package btree

import (
	"bytes"

	"github.com/calvinalkan/redbtree/internal/alloc"
	"github.com/calvinalkan/redbtree/internal/barrier"
	"github.com/calvinalkan/redbtree/internal/codec"
	"github.com/calvinalkan/redbtree/internal/header"
	"github.com/calvinalkan/redbtree/internal/node"
	"github.com/calvinalkan/redbtree/pkg/bio"
)

// Engine is the B-tree's insert/lookup logic, operating over a device whose
// allocator and barrier it shares with the rest of the database.
type Engine struct {
	dev     bio.Device
	alloc   *alloc.Allocator
	barrier *barrier.Controller
	marks   *node.MarkSource

	rootPtr uint64
}

// New constructs an Engine with rootPtr as the current root node offset, as
// loaded from (or just written to) the header's root pointer field.
func New(dev bio.Device, a *alloc.Allocator, ctrl *barrier.Controller, marks *node.MarkSource, rootPtr uint64) *Engine {
	return &Engine{dev: dev, alloc: a, barrier: ctrl, marks: marks, rootPtr: rootPtr}
}

// RootPtr returns the current root node's file offset.
func (e *Engine) RootPtr() uint64 {
	return e.rootPtr
}

// Find looks up key and returns the file offset of its value's payload
// bytes (the same offset [alloc.Allocator.Alloc] would have returned for
// it), or [ErrNotFound].
func (e *Engine) Find(key node.Key) (uint64, error) {
	nptr := e.rootPtr

	for {
		n, err := node.Read(e.dev, nptr)
		if err != nil {
			return 0, err
		}

		j := 0
		cmp := 1
		for j < int(n.NumKeys) {
			cmp = bytes.Compare(key[:], n.Keys[j][:])
			if cmp <= 0 {
				break
			}
			j++
		}

		if j < int(n.NumKeys) && cmp == 0 {
			return n.Values[j], nil
		}

		if n.IsLeaf || n.Children[j] == 0 {
			return 0, ErrNotFound
		}

		nptr = n.Children[j]
	}
}

// VisitFunc is called once per key during a [Engine.Walk], depth first and
// in ascending key order.
type VisitFunc func(key node.Key, valueOffset uint64, depth int) error

// Walk visits every key in the tree, depth first and in ascending order.
// Grounded on original_source/btree.c's btree_walk_rec, with one fix: the
// reference never descends into a node's rightmost child, silently
// skipping a subtree; this walk visits all NumKeys+1 children.
func (e *Engine) Walk(visit VisitFunc) error {
	return e.walk(e.rootPtr, 0, visit)
}

func (e *Engine) walk(nodePtr uint64, depth int, visit VisitFunc) error {
	n, err := node.Read(e.dev, nodePtr)
	if err != nil {
		return err
	}

	for j := 0; j < int(n.NumKeys); j++ {
		if n.Children[j] != 0 {
			if err := e.walk(n.Children[j], depth+1, visit); err != nil {
				return err
			}
		}
		if err := visit(n.Keys[j], n.Values[j], depth); err != nil {
			return err
		}
	}

	if last := n.Children[n.NumKeys]; last != 0 {
		if err := e.walk(last, depth+1, visit); err != nil {
			return err
		}
	}

	return nil
}

// Add inserts key with value val. If key is already present, replace
// controls whether its value is overwritten ([ErrDuplicate] otherwise).
func (e *Engine) Add(key node.Key, val []byte, replace bool) error {
	root, err := node.Read(e.dev, e.rootPtr)
	if err != nil {
		return err
	}

	if root.Full() {
		fresh := &node.Node{}

		freshOff, err := e.alloc.Alloc(uint32(node.Size))
		if err != nil {
			return err
		}
		if err := node.Write(e.dev, e.marks, fresh, freshOff); err != nil {
			return err
		}

		if _, err := e.splitChild(header.RootPtrOffset(), freshOff, 0, e.rootPtr); err != nil {
			return err
		}
	}

	return e.insertNonFull(e.rootPtr, header.RootPtrOffset(), key, val, replace)
}

// insertNonFull walks down from nodePtr (whose referencing pointer lives at
// pointedBy) to find key's insertion point, splitting full children as it
// descends and finally either replacing an existing key's value or
// inserting a new leaf entry.
func (e *Engine) insertNonFull(nodePtr, pointedBy uint64, key node.Key, val []byte, replace bool) error {
	n, err := node.Read(e.dev, nodePtr)
	if err != nil {
		return err
	}

	i := int(n.NumKeys) - 1
	found := false

	for i >= 0 {
		cmp := bytes.Compare(key[:], n.Keys[i][:])
		if cmp == 0 {
			found = true
			break
		}
		if cmp > 0 {
			break
		}
		i--
	}

	if found {
		if !replace {
			return ErrDuplicate
		}

		oldValOff := n.Values[i]

		newValOff, err := e.alloc.Alloc(uint32(len(val)))
		if err != nil {
			return err
		}
		if err := e.dev.WriteAt(val, newValOff); err != nil {
			return err
		}
		if err := e.barrier.Flush(); err != nil {
			return err
		}

		if err := codec.WriteU64(e.dev, newValOff, node.ValueFieldOffset(nodePtr, i)); err != nil {
			return err
		}
		if err := e.barrier.Flush(); err != nil {
			return err
		}

		return e.alloc.Free(oldValOff)
	}

	if n.IsLeaf {
		valOff, err := e.alloc.Alloc(uint32(len(val)))
		if err != nil {
			return err
		}
		if err := e.dev.WriteAt(val, valOff); err != nil {
			return err
		}

		node.InsertKeyAt(n, i+1, key, valOff)

		newOff, err := e.alloc.Alloc(uint32(node.Size))
		if err != nil {
			return err
		}
		if err := node.Write(e.dev, e.marks, n, newOff); err != nil {
			return err
		}

		if err := e.barrier.Flush(); err != nil {
			return err
		}
		if err := codec.WriteU64(e.dev, newOff, pointedBy); err != nil {
			return err
		}
		if pointedBy == header.RootPtrOffset() {
			e.rootPtr = newOff
		}
		if err := e.barrier.Flush(); err != nil {
			return err
		}

		return e.alloc.Free(nodePtr)
	}

	i++
	childPtr := n.Children[i]

	child, err := node.Read(e.dev, childPtr)
	if err != nil {
		return err
	}

	var newNode uint64
	if child.Full() {
		newParent, err := e.splitChild(pointedBy, nodePtr, i, childPtr)
		if err != nil {
			return err
		}
		newNode = newParent
	} else {
		pointedBy = node.ChildFieldOffset(nodePtr, i)
		newNode = childPtr
	}

	return e.insertNonFull(newNode, pointedBy, key, val, replace)
}

// splitChild splits the i-th child of the node at parentOff (itself
// referenced by pointedBy) into two half-full nodes, promoting the child's
// median key into a freshly written copy of the parent. It returns the new
// parent's offset and rewires pointedBy to reference it.
func (e *Engine) splitChild(pointedBy, parentOff uint64, i int, childOff uint64) (uint64, error) {
	parent, err := node.Read(e.dev, parentOff)
	if err != nil {
		return 0, err
	}
	child, err := node.Read(e.dev, childOff)
	if err != nil {
		return 0, err
	}

	const half = (node.MaxKeys - 1) / 2

	left := &node.Node{NumKeys: half, IsLeaf: child.IsLeaf}
	copy(left.Keys[:half], child.Keys[:half])
	copy(left.Values[:half], child.Values[:half])
	copy(left.Children[:half+1], child.Children[:half+1])

	right := &node.Node{NumKeys: half, IsLeaf: child.IsLeaf}
	copy(right.Keys[:half], child.Keys[half+1:half+1+half])
	copy(right.Values[:half], child.Values[half+1:half+1+half])
	copy(right.Children[:half+1], child.Children[half+1:half+1+half+1])

	leftOff, err := e.alloc.Alloc(uint32(node.Size))
	if err != nil {
		return 0, err
	}
	rightOff, err := e.alloc.Alloc(uint32(node.Size))
	if err != nil {
		return 0, err
	}

	if err := node.Write(e.dev, e.marks, left, leftOff); err != nil {
		return 0, err
	}
	if err := node.Write(e.dev, e.marks, right, rightOff); err != nil {
		return 0, err
	}

	nk := int(parent.NumKeys)
	copy(parent.Keys[i+1:nk+1], parent.Keys[i:nk])
	copy(parent.Values[i+1:nk+1], parent.Values[i:nk])
	copy(parent.Children[i+2:nk+2], parent.Children[i+1:nk+1])

	parent.Keys[i] = child.Keys[half]
	parent.Values[i] = child.Values[half]
	parent.Children[i] = leftOff
	parent.Children[i+1] = rightOff
	parent.NumKeys++

	parentNewOff, err := e.alloc.Alloc(uint32(node.Size))
	if err != nil {
		return 0, err
	}
	if err := node.Write(e.dev, e.marks, parent, parentNewOff); err != nil {
		return 0, err
	}

	if err := e.barrier.Flush(); err != nil {
		return 0, err
	}

	if err := codec.WriteU64(e.dev, parentNewOff, pointedBy); err != nil {
		return 0, err
	}
	if pointedBy == header.RootPtrOffset() {
		e.rootPtr = parentNewOff
	}
	if err := e.barrier.Flush(); err != nil {
		return 0, err
	}

	if err := e.alloc.Free(parentOff); err != nil {
		return 0, err
	}
	if err := e.alloc.Free(childOff); err != nil {
		return 0, err
	}

	return parentNewOff, nil
}
