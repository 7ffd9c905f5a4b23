// Package mp4box walks the top-level box structure of a fragmented MP4
// byte stream just far enough to find the boundary between the init
// segment (ftyp/moov/free/skip) and the first media fragment (moof).
package mp4box

import (
	"encoding/binary"
	"errors"
)

// ErrInvalidBoxSize is returned when a box declares a size smaller than the
// 8-byte header it starts with. This is a fatal parse error: the byte
// stream is not a well-formed sequence of MP4 boxes and the caller should
// give up on the current cycle.
var ErrInvalidBoxSize = errors.New("mp4box: declared box size smaller than header")

// initBoxTypes are the top-level boxes that make up an init segment.
var initBoxTypes = map[string]bool{
	"ftyp": true,
	"moov": true,
	"free": true,
	"skip": true,
}

// FindInitBoundary walks buf as a sequence of top-level MP4 boxes
// ([4-byte big-endian size][4-byte ASCII type][payload]) starting at
// offset 0, advancing past boxes of type ftyp/moov/free/skip.
//
// It returns the byte offset of the first box that is not one of those
// four types (typically moof) and ok=true once that boundary is known.
// It returns ok=false when buf doesn't yet contain enough bytes to decide
// (a partial header, or a box whose declared size runs past the end of
// buf) — the caller should accumulate more bytes and retry.
//
// A declared box size below 8 is always a fatal error, regardless of how
// much more data might arrive, since it can never be a valid box header.
func FindInitBoundary(buf []byte) (offset int, ok bool, err error) {
	pos := 0
	for {
		if pos+8 > len(buf) {
			return 0, false, nil
		}
		size := binary.BigEndian.Uint32(buf[pos : pos+4])
		boxType := string(buf[pos+4 : pos+8])

		if size < 8 {
			return 0, false, ErrInvalidBoxSize
		}
		if pos+int(size) > len(buf) {
			return 0, false, nil
		}
		if !initBoxTypes[boxType] {
			return pos, true, nil
		}
		pos += int(size)
	}
}
