package btree

import (
	"fmt"
	"testing"

	"github.com/calvinalkan/redbtree/internal/alloc"
	"github.com/calvinalkan/redbtree/internal/barrier"
	"github.com/calvinalkan/redbtree/internal/header"
	"github.com/calvinalkan/redbtree/internal/node"
	"github.com/calvinalkan/redbtree/pkg/bio"
)

func newTestEngine(t *testing.T) (*Engine, bio.Device) {
	t.Helper()

	dev := bio.NewMemory()

	bumpStart := header.InitialBumpOffset()

	if err := dev.Resize(bumpStart + 16*1024*1024); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if err := header.WriteFree(dev, 16*1024*1024); err != nil {
		t.Fatalf("write free: %v", err)
	}
	if err := header.WriteFreeOff(dev, bumpStart); err != nil {
		t.Fatalf("write freeoff: %v", err)
	}

	ctrl := barrier.New(dev)

	a := alloc.New(dev, ctrl)
	if err := a.Load(); err != nil {
		t.Fatalf("alloc load: %v", err)
	}

	marks := node.NewMarkSource()

	// Allocate the root through the normal allocator path, exactly as
	// buildInitialImage does, so it carries a length prefix and Free can
	// later reclaim it like any other node.
	rootOff, err := a.Alloc(uint32(node.Size))
	if err != nil {
		t.Fatalf("alloc root: %v", err)
	}

	root := &node.Node{IsLeaf: true}
	if err := node.Write(dev, marks, root, rootOff); err != nil {
		t.Fatalf("write root: %v", err)
	}
	if err := header.WriteRootPtr(dev, rootOff); err != nil {
		t.Fatalf("write rootptr: %v", err)
	}

	return New(dev, a, ctrl, marks, rootOff), dev
}

func keyFor(i int) node.Key {
	var k node.Key
	copy(k[:], fmt.Sprintf("%016d", i))
	return k
}

func Test_Find_On_Empty_Tree_Returns_ErrNotFound(t *testing.T) {
	e, _ := newTestEngine(t)

	if _, err := e.Find(keyFor(1)); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func Test_Add_Then_Find_Round_Trips_A_Single_Key(t *testing.T) {
	e, dev := newTestEngine(t)

	if err := e.Add(keyFor(1), []byte("hello"), false); err != nil {
		t.Fatalf("add: %v", err)
	}

	off, err := e.Find(keyFor(1))
	if err != nil {
		t.Fatalf("find: %v", err)
	}

	got := make([]byte, len("hello"))
	if err := dev.ReadAt(got, off); err != nil {
		t.Fatalf("read value: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("value = %q, want %q", got, "hello")
	}
}

func Test_Add_Duplicate_Without_Replace_Fails(t *testing.T) {
	e, _ := newTestEngine(t)

	if err := e.Add(keyFor(1), []byte("a"), false); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := e.Add(keyFor(1), []byte("b"), false); err != ErrDuplicate {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func Test_Add_Duplicate_With_Replace_Overwrites_The_Value(t *testing.T) {
	e, dev := newTestEngine(t)

	if err := e.Add(keyFor(1), []byte("a"), false); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := e.Add(keyFor(1), []byte("bb"), true); err != nil {
		t.Fatalf("replace: %v", err)
	}

	off, err := e.Find(keyFor(1))
	if err != nil {
		t.Fatalf("find: %v", err)
	}

	got := make([]byte, 2)
	if err := dev.ReadAt(got, off); err != nil {
		t.Fatalf("read value: %v", err)
	}
	if string(got) != "bb" {
		t.Fatalf("value = %q, want %q", got, "bb")
	}
}

func Test_Inserting_Beyond_MaxKeys_Splits_The_Root(t *testing.T) {
	e, dev := newTestEngine(t)

	rootBefore := e.RootPtr()

	for i := 0; i < node.MaxKeys+1; i++ {
		if err := e.Add(keyFor(i), []byte{byte(i)}, false); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	if e.RootPtr() == rootBefore {
		t.Fatalf("expected root to change after split")
	}

	root, err := node.Read(dev, e.RootPtr())
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	if root.IsLeaf || root.NumKeys != 1 || root.Keys[0] != keyFor(3) {
		t.Fatalf("root after split: leaf=%v numkeys=%d, want a non-leaf holding only the median key", root.IsLeaf, root.NumKeys)
	}

	for i := 0; i < node.MaxKeys+1; i++ {
		if _, err := e.Find(keyFor(i)); err != nil {
			t.Fatalf("find %d after split: %v", i, err)
		}
	}
}

func Test_Many_Inserts_Stay_Findable_Across_Several_Splits(t *testing.T) {
	e, _ := newTestEngine(t)

	const n = 500
	for i := 0; i < n; i++ {
		if err := e.Add(keyFor(i), []byte(fmt.Sprintf("value-%d", i)), false); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	for i := 0; i < n; i++ {
		if _, err := e.Find(keyFor(i)); err != nil {
			t.Fatalf("find %d: %v", i, err)
		}
	}

	if _, err := e.Find(keyFor(n + 1)); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound for absent key", err)
	}
}

func Test_Inserting_Keys_Out_Of_Order_Still_Preserves_Lookup(t *testing.T) {
	e, _ := newTestEngine(t)

	order := []int{50, 10, 90, 30, 70, 20, 80, 40, 60, 0, 100}
	for _, i := range order {
		if err := e.Add(keyFor(i), []byte{byte(i)}, false); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	for _, i := range order {
		if _, err := e.Find(keyFor(i)); err != nil {
			t.Fatalf("find %d: %v", i, err)
		}
	}
}
