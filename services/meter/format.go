package meter

import (
	"strconv"
	"strings"

	"clockmeter-go/errcode"
	"clockmeter-go/x/conv"
	"clockmeter-go/x/mathx"
)

// AppendFixed appends v/divisor "." v%divisor, the fraction zero-padded to
// the digit count of divisor-1 (three digits for 1000). It does not allocate
// when dst has room, so it is safe in interrupt context.
func AppendFixed(dst []byte, v uint64, divisor uint32) []byte {
	if divisor <= 1 {
		return conv.AppendUint(dst, v)
	}
	d := uint64(divisor)
	dst = conv.AppendUint(dst, v/d)
	dst = append(dst, '.')
	return conv.AppendUintPad(dst, v%d, mathx.DecimalWidth(divisor))
}

// Format renders a raw delta with the prescaler as divisor:
// Format(48237, 1000) == "48.237".
func Format(delta, prescale uint32) string {
	var b [32]byte
	return string(AppendFixed(b[:0], uint64(delta), prescale))
}

// AppendLine appends "<label>: <MHz> <unit>\n" for a value in kHz.
func AppendLine(dst []byte, label string, khz uint64, unit string) []byte {
	dst = append(dst, label...)
	dst = append(dst, ':', ' ')
	dst = AppendFixed(dst, khz, displayDivisor)
	dst = append(dst, ' ')
	dst = append(dst, unit...)
	return append(dst, '\n')
}

// ParseLine is the inverse of AppendLine. Surrounding whitespace is ignored.
func ParseLine(s string) (label string, khz uint64, unit string, err error) {
	bad := func(msg string) (string, uint64, string, error) {
		return "", 0, "", errcode.Wrap(errcode.InvalidLine, "meter.ParseLine", msg)
	}
	s = strings.TrimSpace(s)
	i := strings.Index(s, ": ")
	if i <= 0 {
		return bad("missing label")
	}
	label, rest := s[:i], s[i+2:]
	num, unit, ok := strings.Cut(rest, " ")
	if !ok || unit == "" || strings.ContainsAny(unit, " \t") {
		return bad("missing unit")
	}
	whole, frac, ok := strings.Cut(num, ".")
	if !ok || len(frac) != mathx.DecimalWidth(uint32(displayDivisor)) {
		return bad("bad fixed-point value")
	}
	w, err := strconv.ParseUint(whole, 10, 32)
	if err != nil {
		return bad("bad integer part")
	}
	f, err := strconv.ParseUint(frac, 10, 32)
	if err != nil {
		return bad("bad fractional part")
	}
	return label, w*displayDivisor + f, unit, nil
}
