// Package critical provides scoped priority-ceiling access to state shared
// between interrupt handlers and task code.
//
// On the MCU the ceiling is "all maskable interrupts": Lock disables
// interrupts and restores the previous mask on exit. On host builds each
// Resource carries its own mutex. The protected value is reachable only
// through Lock, so every accessor is covered.
package critical

// Resource owns a value of type T.
type Resource[T any] struct {
	v  T
	cl ceiling
}

// New wraps v. The caller must not keep other references to v's internals.
func New[T any](v T) *Resource[T] {
	return &Resource[T]{v: v}
}

// Lock runs fn with the ceiling raised. The previous priority is restored on
// every exit path, including a panic unwinding through fn.
// Lock is not reentrant for the same Resource on host builds.
func (r *Resource[T]) Lock(fn func(v *T)) {
	st := r.cl.raise()
	defer r.cl.restore(st)
	fn(&r.v)
}

// Guard restores the priority saved by Acquire.
type Guard struct {
	cl *ceiling
	st state
}

// Release restores the priority that was active before Acquire.
func (g Guard) Release() { g.cl.restore(g.st) }

// Acquire raises the ceiling and returns the protected value with a Guard.
// Pair it with a deferred Release. It avoids the closure of Lock on
// interrupt paths that must not allocate.
func (r *Resource[T]) Acquire() (*T, Guard) {
	st := r.cl.raise()
	return &r.v, Guard{cl: &r.cl, st: st}
}

// Read runs fn under r's ceiling and returns its result.
func Read[T, R any](r *Resource[T], fn func(v *T) R) R {
	var out R
	r.Lock(func(v *T) { out = fn(v) })
	return out
}
