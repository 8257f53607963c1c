package conv

// Utoa writes base-10 representation of n into buf and returns the used slice.
// buf should be length >= 20 for uint64.
func Utoa(buf []byte, n uint64) []byte {
	if len(buf) == 0 {
		return buf[:0]
	}
	i := len(buf)
	if n == 0 {
		i--
		buf[i] = '0'
	} else {
		for n > 0 && i > 0 {
			i--
			buf[i] = byte('0' + (n % 10))
			n /= 10
		}
	}
	return buf[i:]
}

// AppendUint appends the decimal form of n to dst.
// No heap allocation when dst has spare capacity; safe in interrupt context.
func AppendUint(dst []byte, n uint64) []byte {
	var tmp [20]byte
	return append(dst, Utoa(tmp[:], n)...)
}

// AppendUintPad appends n in decimal, left-padded with '0' to at least width
// digits. Wider values are written in full.
func AppendUintPad(dst []byte, n uint64, width int) []byte {
	var tmp [20]byte
	d := Utoa(tmp[:], n)
	for pad := width - len(d); pad > 0; pad-- {
		dst = append(dst, '0')
	}
	return append(dst, d...)
}
