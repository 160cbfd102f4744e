package classifier

// StateTracker turns per-tick results into transition events.
//
// It is Idle until the first result with a real label, then Locked on the last
// label it triggered. The sink fires exactly once per change of that label,
// never again while the prediction stays the same.
//
// Not safe for concurrent use; the frame loop owns it.
type StateTracker struct {
	sink ActionSink
	last Label
}

// NewStateTracker creates an Idle tracker firing transitions into sink
func NewStateTracker(sink ActionSink) *StateTracker {
	return &StateTracker{sink: sink, last: NoLabel}
}

// Observe evaluates one tick's result and reports whether a transition fired.
// Nil results and NoLabel results leave the state unchanged.
func (t *StateTracker) Observe(result *Result) bool {
	if result == nil || result.Label == NoLabel {
		return false
	}
	if result.Label == t.last {
		return false
	}

	if t.sink != nil {
		t.sink.OnTransition(result.Label)
	}
	t.last = result.Label
	return true
}

// Current returns the last triggered label and whether the tracker is Locked
func (t *StateTracker) Current() (Label, bool) {
	return t.last, t.last != NoLabel
}

// Reset returns the tracker to Idle
func (t *StateTracker) Reset() {
	t.last = NoLabel
}
