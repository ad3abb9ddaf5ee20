package llm

const (
	// DefaultFastModel handles latency-sensitive work such as intent
	// classification and translation.
	DefaultFastModel = "llama-3.1-8b-instant"

	// DefaultHeavyModel handles free-form answer generation where
	// quality matters more than latency.
	DefaultHeavyModel = "llama-3.3-70b-versatile"
)

// Selector maps task classes to model names. Engines never hold model
// names directly; they ask the selector so a config change repoints
// every store at once.
type Selector struct {
	fast  string
	heavy string
}

// NewSelector builds a selector. Empty names fall back to the
// defaults.
func NewSelector(fast, heavy string) *Selector {
	if fast == "" {
		fast = DefaultFastModel
	}
	if heavy == "" {
		heavy = DefaultHeavyModel
	}
	return &Selector{fast: fast, heavy: heavy}
}

// Fast returns the model for cheap, quick calls.
func (s *Selector) Fast() string { return s.fast }

// Heavy returns the model for quality-sensitive generation.
func (s *Selector) Heavy() string { return s.heavy }
