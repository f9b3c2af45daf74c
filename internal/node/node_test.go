package node

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/redbtree/pkg/bio"
)

func Test_Encode_Then_Decode_Round_Trips(t *testing.T) {
	n := &Node{
		NumKeys: 2,
		IsLeaf:  true,
	}
	n.Keys[0] = Key{1, 2, 3}
	n.Keys[1] = Key{4, 5, 6}
	n.Values[0] = 100
	n.Values[1] = 200
	n.Children[0] = 0

	buf := Encode(n, 42)
	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if diff := cmp.Diff(n, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func Test_Decode_Rejects_Mismatched_Start_And_End_Marks(t *testing.T) {
	n := &Node{NumKeys: 1, IsLeaf: true}
	buf := Encode(n, 7)

	buf[len(buf)-1] ^= 0xFF

	if _, err := Decode(buf); err != ErrCorrupt {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}

func Test_Decode_Rejects_Wrong_Length_Images(t *testing.T) {
	if _, err := Decode(make([]byte, Size-1)); err == nil {
		t.Fatalf("expected error for short image")
	}
}

func Test_Write_Then_Read_Round_Trips_Through_A_Device(t *testing.T) {
	dev := bio.NewMemory()
	if err := dev.Resize(Size * 2); err != nil {
		t.Fatalf("resize: %v", err)
	}

	marks := NewMarkSource()

	n := &Node{NumKeys: 3, IsLeaf: false}
	n.Keys[0] = Key{9}
	n.Children[0] = 1234
	n.Children[1] = 5678

	if err := Write(dev, marks, n, Size); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := Read(dev, Size)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if diff := cmp.Diff(n, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func Test_MarkSource_Next_Is_Strictly_Increasing(t *testing.T) {
	s := NewMarkSource()

	a := s.Next()
	b := s.Next()

	if b != a+1 {
		t.Fatalf("b = %d, want %d", b, a+1)
	}
}

func Test_Full_Reports_True_At_MaxKeys(t *testing.T) {
	n := &Node{NumKeys: MaxKeys}
	if !n.Full() {
		t.Fatalf("expected Full() to be true at MaxKeys")
	}

	n.NumKeys = MaxKeys - 1
	if n.Full() {
		t.Fatalf("expected Full() to be false below MaxKeys")
	}
}
