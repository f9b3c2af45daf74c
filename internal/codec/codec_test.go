package codec

import (
	"testing"

	"github.com/calvinalkan/redbtree/pkg/bio"
)

func Test_U32_Round_Trips_Through_PutU32(t *testing.T) {
	buf := make([]byte, 4)
	PutU32(buf, 0xDEADBEEF)

	if got, want := U32(buf), uint32(0xDEADBEEF); got != want {
		t.Fatalf("got=%#x want=%#x", got, want)
	}
}

func Test_U64_Round_Trips_Through_PutU64(t *testing.T) {
	buf := make([]byte, 8)
	PutU64(buf, 0x0123456789ABCDEF)

	if got, want := U64(buf), uint64(0x0123456789ABCDEF); got != want {
		t.Fatalf("got=%#x want=%#x", got, want)
	}
}

func Test_U32_Is_Big_Endian(t *testing.T) {
	buf := []byte{0x00, 0x00, 0x01, 0x00}
	if got, want := U32(buf), uint32(256); got != want {
		t.Fatalf("got=%d want=%d (big-endian)", got, want)
	}
}

func Test_WriteU64_Then_ReadU64_Round_Trips_Through_A_Device(t *testing.T) {
	dev := bio.NewMemory()
	if err := dev.Resize(16); err != nil {
		t.Fatalf("resize: %v", err)
	}

	if err := WriteU64(dev, 0x1122334455667788, 8); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ReadU64(dev, 8)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if want := uint64(0x1122334455667788); got != want {
		t.Fatalf("got=%#x want=%#x", got, want)
	}
}
