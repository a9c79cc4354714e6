package wait

// Command names, as exposed over JSON-RPC and in wait plans.
const (
	NameEnabled = "waitForEnabled"
	NameValue   = "waitForValue"
)

// NewEnabled returns a command waiting for an element to become enabled, or
// disabled in reverse mode. With several matched elements, one enabled
// element satisfies the forward wait and the reverse wait needs all of them
// disabled.
func NewEnabled(query Query[bool], cfg Config) *Command[bool] {
	return &Command[bool]{
		name:     NameEnabled,
		query:    query,
		positive: isTrue,
		describe: func(reverse bool) string {
			if reverse {
				return "enabled"
			}
			return "not enabled"
		},
		cfg: cfg,
	}
}

// NewValue returns a command waiting for an element to have a non-empty
// value, or an empty one in reverse mode.
func NewValue(query Query[string], cfg Config) *Command[string] {
	return &Command[string]{
		name:     NameValue,
		query:    query,
		positive: hasValue,
		describe: func(reverse bool) string {
			if reverse {
				return "with a value"
			}
			return "without a value"
		},
		cfg: cfg,
	}
}
