package conv

const hexd = "0123456789ABCDEF"

// AppendHex8 appends b as "0x" followed by two uppercase hex digits.
func AppendHex8(dst []byte, b uint8) []byte {
	return append(dst, '0', 'x', hexd[b>>4], hexd[b&0xF])
}
