package mathx

import "golang.org/x/exp/constraints"

// WrapSub returns cur-prev in modular arithmetic of T's width.
// The result is the number of increments from prev to cur, assuming the
// counter wrapped at most once between the two readings.
func WrapSub[T constraints.Unsigned](cur, prev T) T {
	return cur - prev
}

// Mask returns the low-width bit mask (width 1..32). Out-of-range widths
// yield the full 32-bit mask.
func Mask(width uint8) uint32 {
	if width == 0 || width >= 32 {
		return ^uint32(0)
	}
	return uint32(1)<<width - 1
}

// WrapSubN is WrapSub for a counter of arbitrary width held in a uint32.
func WrapSubN(cur, prev uint32, width uint8) uint32 {
	return WrapSub(cur, prev) & Mask(width)
}

// Modulus returns 2^width as a uint64 (width 1..32).
func Modulus(width uint8) uint64 {
	if width == 0 || width > 32 {
		width = 32
	}
	return uint64(1) << width
}

// DecimalWidth returns the number of decimal digits needed to print every
// remainder modulo d, i.e. the digit count of d-1. d<=1 gives 0.
func DecimalWidth[T constraints.Unsigned](d T) int {
	if d <= 1 {
		return 0
	}
	n := 0
	for v := d - 1; v > 0; v /= 10 {
		n++
	}
	return n
}
