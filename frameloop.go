package classifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/FrenchMajesty/frame-classifier/internal/telemetry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Dependencies are the external collaborators of a FrameLoop
type Dependencies struct {
	// Source yields frames. Required.
	Source FrameSource

	// Extractor turns frames into embeddings. Required.
	Extractor FeatureExtractor

	// Training reports the label being trained. If nil, the loop never trains.
	Training TrainingSignal

	// Sink receives transition events. If nil, transitions are only tracked.
	Sink ActionSink
}

// FrameLoop is the per-tick orchestrator: train on the current frame if a training
// label is active, classify it if any examples exist, and feed the result to the
// StateTracker. Ticks never overlap.
type FrameLoop struct {
	store      *ExampleStore
	classifier *Classifier
	tracker    *StateTracker

	source    FrameSource
	extractor FeatureExtractor
	training  TrainingSignal

	tickRate float64
	logger   *zap.Logger
	metrics  *telemetry.LoopMetrics

	// tickMu serializes ticks, including direct Step callers
	tickMu sync.Mutex

	last *Result

	running atomic.Bool
	runMu   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}

	ticks          atomic.Uint64
	skippedTicks   atomic.Uint64
	examplesAdded  atomic.Uint64
	predictions    atomic.Uint64
	transitions    atomic.Uint64
	rejectedInputs atomic.Uint64
}

// NewFrameLoop validates cfg and wires the store, classifier and tracker
func NewFrameLoop(cfg Config, deps Dependencies) (*FrameLoop, error) {
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Source == nil {
		return nil, fmt.Errorf("%w: frame source is required", ErrConfiguration)
	}
	if deps.Extractor == nil {
		return nil, fmt.Errorf("%w: feature extractor is required", ErrConfiguration)
	}

	var opts []StoreOption
	if cfg.Index != nil {
		opts = append(opts, WithIndex(cfg.Index))
	}
	store, err := NewExampleStore(cfg.NumClasses, cfg.Dim, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create example store: %w", err)
	}

	clf, err := NewClassifier(store, cfg.K)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}

	return &FrameLoop{
		store:      store,
		classifier: clf,
		tracker:    NewStateTracker(deps.Sink),
		source:     deps.Source,
		extractor:  deps.Extractor,
		training:   deps.Training,
		tickRate:   cfg.TickRate,
		logger:     cfg.Logger,
		metrics:    telemetry.NewLoopMetrics(cfg.Registerer),
	}, nil
}

// Store returns the loop's example store
func (l *FrameLoop) Store() *ExampleStore {
	return l.store
}

// Classifier returns the loop's classifier
func (l *FrameLoop) Classifier() *Classifier {
	return l.classifier
}

// Step runs one tick and returns its classification result, or nil when the tick
// produced none. ErrInvalidInput is returned for a rejected example or query; the
// store is unchanged and the next tick may proceed.
func (l *FrameLoop) Step(ctx context.Context) (*Result, error) {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()

	result, outcome, err := l.step(ctx)
	if result != nil {
		l.last = result
	}

	l.ticks.Add(1)
	switch outcome {
	case telemetry.OutcomeSkipped:
		l.skippedTicks.Add(1)
	case telemetry.OutcomeRejected:
		l.rejectedInputs.Add(1)
	}
	l.metrics.RecordTick(outcome)

	return result, err
}

func (l *FrameLoop) step(ctx context.Context) (*Result, string, error) {
	frame, err := l.source.Frame(ctx)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return nil, telemetry.OutcomeSkipped, nil
		}
		if errors.Is(err, io.EOF) {
			return nil, telemetry.OutcomeSkipped, err
		}
		return nil, telemetry.OutcomeError, fmt.Errorf("failed to acquire frame: %w", err)
	}

	training := NoLabel
	if l.training != nil {
		training = l.training.Current()
	}

	// The embedding is extracted at most once per tick and released on every exit path.
	var emb *Embedding
	defer func() { emb.Release() }()

	embed := func() ([]float32, error) {
		if emb != nil {
			return emb.Vector, nil
		}
		e, err := l.extractor.Extract(ctx, frame)
		if err != nil {
			e.Release()
			return nil, err
		}
		if e == nil {
			return nil, ErrUnavailable
		}
		emb = e
		// Extraction may complete after cancellation; its result is discarded.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return emb.Vector, nil
	}

	trained := false
	if training != NoLabel {
		vector, err := embed()
		if err != nil {
			return l.extractFailed(err)
		}

		if _, err := l.store.AddExample(ctx, training, vector); err != nil {
			return nil, outcomeFor(err), fmt.Errorf("failed to add example for class %s: %w", training, err)
		}
		trained = true
		l.examplesAdded.Add(1)
		l.metrics.RecordExample(int(training), l.store.TotalExamples())
	}

	if l.store.TotalExamples() == 0 {
		return nil, telemetry.OutcomeIdle, nil
	}

	vector, err := embed()
	if err != nil {
		return l.extractFailed(err)
	}

	start := time.Now()
	result, err := l.classifier.Predict(ctx, vector)
	if err != nil {
		// An index may not see freshly written examples yet
		if errors.Is(err, ErrUnavailable) {
			return nil, telemetry.OutcomeSkipped, nil
		}
		return nil, outcomeFor(err), fmt.Errorf("failed to predict: %w", err)
	}
	l.metrics.RecordPredict(time.Since(start))
	l.predictions.Add(1)

	if l.tracker.Observe(result) {
		l.transitions.Add(1)
		l.metrics.RecordTransition(int(result.Label))
		l.logger.Info("class transition",
			zap.Stringer("label", result.Label),
			zap.Float64("confidence", result.Confidences[result.Label]),
			zap.Uint64("frame_seq", frame.Seq),
		)
	}

	if trained {
		return result, telemetry.OutcomeTrained, nil
	}
	return result, telemetry.OutcomePredicted, nil
}

// extractFailed maps an extraction error to the tick outcome. Unavailable embeddings skip the tick silently.
func (l *FrameLoop) extractFailed(err error) (*Result, string, error) {
	if errors.Is(err, ErrUnavailable) {
		return nil, telemetry.OutcomeSkipped, nil
	}
	return nil, outcomeFor(err), fmt.Errorf("failed to extract embedding: %w", err)
}

func outcomeFor(err error) string {
	if errors.Is(err, ErrInvalidInput) {
		return telemetry.OutcomeRejected
	}
	return telemetry.OutcomeError
}

// Run executes ticks sequentially, at most TickRate per second, until ctx is
// cancelled, Stop is called or the frame source returns io.EOF.
//
// Errors from a single tick are logged and the loop continues. Run returns
// ctx.Err() when ctx is cancelled and nil on Stop or end of input.
func (l *FrameLoop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	l.runMu.Lock()
	l.cancel = cancel
	l.done = done
	l.runMu.Unlock()

	defer func() {
		cancel()
		l.running.Store(false)
		close(done)
	}()

	limiter := rate.NewLimiter(rate.Limit(l.tickRate), 1)
	l.logger.Info("frame loop started",
		zap.Float64("tick_rate", l.tickRate),
		zap.Int("k", l.classifier.K()),
		zap.Int("classes", l.store.NumClasses()),
		zap.Int("dim", l.store.Dim()),
	)

	for {
		if err := limiter.Wait(runCtx); err != nil {
			// The next tick would land past the deadline
			<-runCtx.Done()
			return l.stopped(ctx)
		}

		_, err := l.Step(runCtx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			l.logger.Info("frame source exhausted", zap.Uint64("ticks", l.ticks.Load()))
			return nil
		case runCtx.Err() != nil:
			return l.stopped(ctx)
		case errors.Is(err, ErrInvalidInput):
			l.logger.Warn("tick rejected", zap.Error(err))
		default:
			l.logger.Error("tick failed", zap.Error(err))
		}
	}
}

func (l *FrameLoop) stopped(parent context.Context) error {
	l.logger.Info("frame loop stopped", zap.Uint64("ticks", l.ticks.Load()))
	return parent.Err()
}

// Stop cancels a running Run and waits for it to return. Safe to call when not running.
func (l *FrameLoop) Stop() {
	l.runMu.Lock()
	cancel, done := l.cancel, l.done
	l.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Reset removes every example and returns the tracker to Idle
func (l *FrameLoop) Reset(ctx context.Context) error {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()

	if err := l.store.Clear(ctx); err != nil {
		return err
	}
	l.tracker.Reset()
	l.last = nil
	l.metrics.SetStoreSize(0)
	return nil
}

// LastResult returns the most recent classification result, or nil before the first one
func (l *FrameLoop) LastResult() *Result {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()
	return l.last
}

// Current returns the last triggered label and whether one has been triggered
func (l *FrameLoop) Current() (Label, bool) {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()
	return l.tracker.Current()
}

// Stats returns a snapshot of the loop's counters
func (l *FrameLoop) Stats() Stats {
	return Stats{
		Ticks:          l.ticks.Load(),
		SkippedTicks:   l.skippedTicks.Load(),
		ExamplesAdded:  l.examplesAdded.Load(),
		Predictions:    l.predictions.Load(),
		Transitions:    l.transitions.Load(),
		RejectedInputs: l.rejectedInputs.Load(),
	}
}
