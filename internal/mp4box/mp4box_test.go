package mp4box

import (
	"encoding/binary"
	"errors"
	"testing"
)

// box builds a top-level MP4 box with the given type and payload length,
// filled with a repeating byte so the test can tell boxes apart.
func box(boxType string, payloadLen int) []byte {
	size := 8 + payloadLen
	buf := make([]byte, size)
	binary.BigEndian.PutUint32(buf[0:4], uint32(size))
	copy(buf[4:8], boxType)
	for i := 8; i < size; i++ {
		buf[i] = 0xAB
	}
	return buf
}

func TestFindInitBoundary_TypicalStream(t *testing.T) {
	ftyp := box("ftyp", 24)
	moov := box("moov", 504)
	moof := box("moof", 100)

	buf := append(append(append([]byte{}, ftyp...), moov...), moof...)

	offset, ok, err := FindInitBoundary(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected boundary to be found")
	}
	want := len(ftyp) + len(moov)
	if offset != want {
		t.Errorf("offset = %d, want %d", offset, want)
	}
}

func TestFindInitBoundary_WithFreeAndSkip(t *testing.T) {
	parts := [][]byte{
		box("ftyp", 24),
		box("free", 8),
		box("moov", 200),
		box("skip", 4),
		box("moof", 50),
	}
	var buf []byte
	for _, p := range parts {
		buf = append(buf, p...)
	}
	offset, ok, err := FindInitBoundary(buf)
	if err != nil || !ok {
		t.Fatalf("unexpected result: offset=%d ok=%v err=%v", offset, ok, err)
	}
	want := len(buf) - len(parts[len(parts)-1])
	if offset != want {
		t.Errorf("offset = %d, want %d", offset, want)
	}
}

func TestFindInitBoundary_NeedsMoreData(t *testing.T) {
	ftyp := box("ftyp", 24)
	moov := box("moov", 504)
	full := append(append([]byte{}, ftyp...), moov...)

	// Any truncation before the moof header completes must report "need more data".
	for _, n := range []int{0, 1, 7, len(ftyp), len(ftyp) + 3, len(full)} {
		offset, ok, err := FindInitBoundary(full[:n])
		if err != nil {
			t.Fatalf("truncation at %d: unexpected error %v", n, err)
		}
		if ok {
			t.Fatalf("truncation at %d: expected ok=false, got offset=%d", n, offset)
		}
	}
}

func TestFindInitBoundary_InvalidSize(t *testing.T) {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint32(buf[0:4], 4) // declared size smaller than the 8-byte header
	copy(buf[4:8], "ftyp")

	_, ok, err := FindInitBoundary(buf)
	if ok {
		t.Fatal("expected ok=false on invalid size")
	}
	if !errors.Is(err, ErrInvalidBoxSize) {
		t.Errorf("err = %v, want ErrInvalidBoxSize", err)
	}
}

func TestFindInitBoundary_OnlyInitBoxes(t *testing.T) {
	ftyp := box("ftyp", 24)
	moov := box("moov", 100)
	buf := append(append([]byte{}, ftyp...), moov...)

	_, ok, err := FindInitBoundary(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("a buffer of only init boxes must report ok=false (moof hasn't arrived)")
	}
}
