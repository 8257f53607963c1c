package errcode

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK    Code = "ok"
	Error Code = "error" // generic fallback

	// Pulse source faults. Both are fatal configuration faults.
	MissedAck Code = "missed_ack"
	Overrun   Code = "overrun"

	// Setup/config
	InvalidConfig  Code = "invalid_config"
	Aliasing       Code = "aliasing"
	UnknownChannel Code = "unknown_channel"
	NotStarted     Code = "not_started" // Ack before Start
	AlreadyStarted Code = "already_started"

	// Host tooling
	InvalidLine Code = "invalid_line"
)

// E keeps a code together with the failing operation and an optional cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, errcode.X) match a wrapped code.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// Wrap builds an *E for op with code c.
func Wrap(c Code, op, msg string) *E { return &E{C: c, Op: op, Msg: msg} }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// Fatal reports whether a code is a configuration fault that must halt the
// device rather than be reported and skipped.
func Fatal(c Code) bool {
	return c == MissedAck || c == Overrun
}
