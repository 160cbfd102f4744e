// Package sink provides ActionSink implementations for transition events.
package sink

import (
	classifier "github.com/FrenchMajesty/frame-classifier"
	"go.uber.org/zap"
)

// Func adapts a function to classifier.ActionSink
type Func func(label classifier.Label)

// OnTransition implements classifier.ActionSink
func (f Func) OnTransition(label classifier.Label) {
	f(label)
}

// Log writes every transition to a zap logger
type Log struct {
	logger *zap.Logger
}

// NewLog creates a sink logging at info level
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// OnTransition implements classifier.ActionSink
func (l *Log) OnTransition(label classifier.Label) {
	l.logger.Info("transition", zap.Stringer("label", label))
}

// PerClass dispatches each transition to the action registered for its label,
// such as a recorded response clip per class. Labels without an action are ignored.
type PerClass struct {
	actions map[classifier.Label]classifier.ActionSink
}

// NewPerClass creates an empty dispatcher
func NewPerClass() *PerClass {
	return &PerClass{actions: make(map[classifier.Label]classifier.ActionSink)}
}

// Set registers action for label, replacing any previous one. A nil action removes it.
// Not safe to call while the loop is running.
func (p *PerClass) Set(label classifier.Label, action classifier.ActionSink) {
	if action == nil {
		delete(p.actions, label)
		return
	}
	p.actions[label] = action
}

// OnTransition implements classifier.ActionSink
func (p *PerClass) OnTransition(label classifier.Label) {
	if action, ok := p.actions[label]; ok {
		action.OnTransition(label)
	}
}

// Multi fans a transition out to several sinks in order
type Multi []classifier.ActionSink

// OnTransition implements classifier.ActionSink
func (m Multi) OnTransition(label classifier.Label) {
	for _, s := range m {
		if s != nil {
			s.OnTransition(label)
		}
	}
}
