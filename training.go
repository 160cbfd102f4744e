package classifier

import "sync/atomic"

// TrainingSwitch is a TrainingSignal driven by press/release events, typically a
// "train class N" button held down by the user. The zero value is released.
// Safe for concurrent use.
type TrainingSwitch struct {
	// pressed holds label+1 so that zero means released
	pressed atomic.Int64
}

// Press starts training label
func (s *TrainingSwitch) Press(label Label) {
	s.pressed.Store(int64(label) + 1)
}

// Release stops training
func (s *TrainingSwitch) Release() {
	s.pressed.Store(0)
}

// Current implements TrainingSignal
func (s *TrainingSwitch) Current() Label {
	return Label(s.pressed.Load() - 1)
}
