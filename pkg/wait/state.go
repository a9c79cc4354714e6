package wait

// State is the result of one state query: either a single value or one value
// per element matched by the target.
type State[T any] struct {
	values []T
	multi  bool
}

// Single wraps the state of exactly one element.
func Single[T any](v T) State[T] {
	return State[T]{values: []T{v}}
}

// Multiple wraps the states of every matched element. Zero values yield an
// empty sequence, which is distinct from Single.
func Multiple[T any](vs ...T) State[T] {
	return State[T]{values: append([]T(nil), vs...), multi: true}
}

// IsMulti reports whether the state is a sequence.
func (s State[T]) IsMulti() bool {
	return s.multi
}

// Values returns a copy of the underlying values.
func (s State[T]) Values() []T {
	return append([]T(nil), s.values...)
}

// Aggregate folds a state into the single boolean the poller checks.
//
// A scalar is satisfied when positive(v) differs from reverse. A sequence is
// satisfied, in forward mode, when at least one element is positive and, in
// reverse mode, when no element is. An empty sequence is never satisfied in
// either mode.
func Aggregate[T any](s State[T], positive func(T) bool, reverse bool) bool {
	if !s.multi {
		if len(s.values) == 0 {
			return false
		}
		return positive(s.values[0]) != reverse
	}
	if len(s.values) == 0 {
		return false
	}

	anyPositive := false
	for _, v := range s.values {
		if positive(v) {
			anyPositive = true
			break
		}
	}
	return anyPositive != reverse
}

func isTrue(v bool) bool { return v }

func hasValue(v string) bool { return v != "" }
