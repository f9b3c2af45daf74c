package bio

import (
	"errors"
	"path/filepath"
	"testing"
)

func Test_Real_Open_Fails_When_File_Does_Not_Exist_And_Create_Is_False(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.db")

	_, err := NewReal().Open(path, false)
	if err == nil {
		t.Fatalf("expected error opening missing file without create")
	}
}

func Test_Real_WriteAt_Then_ReadAt_Round_Trips_Bytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.db")

	dev, err := NewReal().Open(path, true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer dev.Close()

	if err := dev.Resize(64); err != nil {
		t.Fatalf("resize: %v", err)
	}

	want := []byte("0123456789abcdef")
	if err := dev.WriteAt(want, 16); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := make([]byte, len(want))
	if err := dev.ReadAt(got, 16); err != nil {
		t.Fatalf("read: %v", err)
	}

	if string(got) != string(want) {
		t.Fatalf("got=%q want=%q", got, want)
	}
}

func Test_Real_ReadAt_Past_End_Of_File_Is_A_Short_Transfer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "small.db")

	dev, err := NewReal().Open(path, true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer dev.Close()

	if err := dev.Resize(4); err != nil {
		t.Fatalf("resize: %v", err)
	}

	buf := make([]byte, 8)
	if err := dev.ReadAt(buf, 0); !errors.Is(err, ErrShortTransfer) {
		t.Fatalf("err=%v, want ErrShortTransfer", err)
	}
}

func Test_Real_Open_Second_Handle_Fails_While_First_Is_Open(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "locked.db")

	dev, err := NewReal().Open(path, true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer dev.Close()

	_, err = NewReal().Open(path, false)
	if err == nil {
		t.Fatalf("expected second open to fail while first is held")
	}
}

func Test_Memory_WriteAt_Then_ReadAt_Round_Trips_Bytes(t *testing.T) {
	dev := NewMemory()

	if err := dev.Resize(32); err != nil {
		t.Fatalf("resize: %v", err)
	}

	want := []byte("hello world")
	if err := dev.WriteAt(want, 4); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := make([]byte, len(want))
	if err := dev.ReadAt(got, 4); err != nil {
		t.Fatalf("read: %v", err)
	}

	if string(got) != string(want) {
		t.Fatalf("got=%q want=%q", got, want)
	}
}

func Test_Fault_Drops_The_Nth_Write_And_Panics_On_Next_Flush(t *testing.T) {
	dev := NewMemory()
	if err := dev.Resize(64); err != nil {
		t.Fatalf("resize: %v", err)
	}

	fault := NewFault(dev, FaultConfig{AfterWrite: 2, Action: FaultDropWrite})

	if err := fault.WriteAt([]byte("aaaa"), 0); err != nil {
		t.Fatalf("write 1: %v", err)
	}
	if err := fault.WriteAt([]byte("bbbb"), 4); err != nil {
		t.Fatalf("write 2: %v", err)
	}

	if !fault.Triggered() {
		t.Fatalf("expected failpoint to have triggered")
	}

	got := make([]byte, 4)
	if err := dev.ReadAt(got, 4); err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) == "bbbb" {
		t.Fatalf("dropped write should not have reached the underlying device")
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected Flush to panic after the dropped write")
		}
	}()
	_ = fault.Flush()
}
