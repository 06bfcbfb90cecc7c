package rng

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Uniform draws a value uniformly from [low, high] by rejection sampling.
func Uniform(src io.Reader, low, high uint32) (uint32, error) {
	if low > high {
		return 0, ErrInvalidRange.Wrapf("low %d > high %d", low, high)
	}
	width := uint64(high) - uint64(low) + 1
	if width == 1 {
		return low, nil
	}
	// Largest multiple of width that fits in 2^32; anything above is rejected.
	limit := (uint64(math.MaxUint32) + 1) / width * width
	var buf [4]byte
	for tries := 0; tries < 1_000; tries++ {
		if _, err := io.ReadFull(src, buf[:]); err != nil {
			return 0, fmt.Errorf("uniform: read entropy: %w", err)
		}
		v := uint64(binary.LittleEndian.Uint32(buf[:]))
		if v < limit {
			return low + uint32(v%width), nil
		}
	}
	return 0, fmt.Errorf("uniform: failed to draw after many tries (width=%d)", width)
}
