package sink

import (
	"sync"
	"sync/atomic"

	classifier "github.com/FrenchMajesty/frame-classifier"
	"go.uber.org/zap"
)

// DefaultQueueSize is the number of pending transitions an Async sink buffers
const DefaultQueueSize = 8

// Async delivers transitions to a slow target (audio playback, network calls) on
// its own goroutine so OnTransition never blocks the frame loop. When the queue is
// full the event is dropped and counted.
type Async struct {
	target classifier.ActionSink
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
	ch     chan classifier.Label
	wg     sync.WaitGroup

	dropped atomic.Uint64
}

// NewAsync starts a worker delivering to target through a queue of size entries
func NewAsync(target classifier.ActionSink, size int, logger *zap.Logger) *Async {
	if size < 1 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Async{
		target: target,
		logger: logger,
		ch:     make(chan classifier.Label, size),
	}

	a.wg.Add(1)
	go a.drain()
	return a
}

func (a *Async) drain() {
	defer a.wg.Done()
	for label := range a.ch {
		a.deliver(label)
	}
}

func (a *Async) deliver(label classifier.Label) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("transition sink panicked", zap.Stringer("label", label), zap.Any("panic", r))
		}
	}()
	a.target.OnTransition(label)
}

// OnTransition implements classifier.ActionSink. It never blocks.
func (a *Async) OnTransition(label classifier.Label) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		a.dropped.Add(1)
		return
	}

	select {
	case a.ch <- label:
	default:
		a.dropped.Add(1)
		a.logger.Warn("transition dropped, sink queue full", zap.Stringer("label", label))
	}
}

// Dropped returns the number of transitions that were not delivered
func (a *Async) Dropped() uint64 {
	return a.dropped.Load()
}

// Close stops accepting transitions and waits until queued ones are delivered.
// It's safe to call Close multiple times.
func (a *Async) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.ch)
	}
	a.mu.Unlock()

	a.wg.Wait()
	return nil
}
