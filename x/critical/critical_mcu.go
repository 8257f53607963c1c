//go:build rp2040 || rp2350

package critical

import "runtime/interrupt"

type state = interrupt.State

type ceiling struct{}

func (*ceiling) raise() state    { return interrupt.Disable() }
func (*ceiling) restore(s state) { interrupt.Restore(s) }
