package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	classifier "github.com/FrenchMajesty/frame-classifier"
	chromemindex "github.com/FrenchMajesty/frame-classifier/adapters/chromem"
	pineconeindex "github.com/FrenchMajesty/frame-classifier/adapters/pinecone"
	"github.com/FrenchMajesty/frame-classifier/internal/config"
	"github.com/FrenchMajesty/frame-classifier/internal/logging"
	"github.com/FrenchMajesty/frame-classifier/replay"
	"github.com/FrenchMajesty/frame-classifier/sink"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var metricsAddr string

// replayCmd runs the pipeline over a recorded session
var replayCmd = &cobra.Command{
	Use:   "replay [recording.jsonl]",
	Short: "Run the classifier over a recorded embedding session",
	Long: `Replay a recorded session through the frame loop. Each line of the recording
is one frame: {"train": <label>, "vector": [...]}. Transitions are printed as
they fire and a per-class summary is printed at the end.

Examples:
  # Replay a file
  frame-classifier replay session.jsonl

  # Replay from stdin with a Prometheus endpoint
  cat session.jsonl | frame-classifier replay --metrics-addr :9102 -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides metrics.addr)")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath, envFilePath)
	if err != nil {
		return err
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logging.Sync(logger)

	input, closeInput, err := openRecording(args)
	if err != nil {
		return err
	}
	defer closeInput()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if cfg.Metrics.Addr != "" {
		shutdown := serveMetrics(cfg.Metrics.Addr, reg, logger)
		defer shutdown()
	}

	index, closeIndex, err := newIndex(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeIndex()

	out := cmd.OutOrStdout()
	transitions := sink.NewAsync(sink.Multi{
		sink.NewLog(logger.Named("sink")),
		sink.Func(func(label classifier.Label) {
			fmt.Fprintf(out, "transition -> class %s\n", label)
		}),
	}, cfg.Sink.QueueSize, logger)

	session := replay.NewSession(input)
	loop, err := classifier.NewFrameLoop(classifier.Config{
		NumClasses: cfg.Classifier.Classes,
		K:          cfg.Classifier.K,
		Dim:        cfg.Classifier.Dim,
		TickRate:   cfg.Classifier.TickRate,
		Index:      index,
		Logger:     logger.Named("loop"),
		Registerer: reg,
	}, classifier.Dependencies{
		Source:    session,
		Extractor: session,
		Training:  session,
		Sink:      transitions,
	})
	if err != nil {
		return fmt.Errorf("failed to create frame loop: %w", err)
	}

	runErr := loop.Run(ctx)
	transitions.Close()

	printSummary(out, loop, transitions.Dropped())

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func openRecording(args []string) (io.Reader, func(), error) {
	if len(args) == 0 || args[0] == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open recording %s: %w", args[0], err)
	}
	return f, func() { f.Close() }, nil
}

// newIndex builds the configured nearest-neighbor backend. The exact backend needs none.
func newIndex(ctx context.Context, cfg *config.Config, logger *zap.Logger) (classifier.NeighborIndex, func(), error) {
	switch cfg.Index.Backend {
	case config.BackendChromem:
		idx, err := chromemindex.NewIndex(logger.Named("chromem"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create chromem index: %w", err)
		}
		return idx, func() {}, nil

	case config.BackendPinecone:
		idx, err := pineconeindex.NewIndex(pineconeindex.Config{
			APIKey:    cfg.Index.PineconeAPIKey,
			Host:      cfg.Index.PineconeHost,
			Namespace: cfg.Index.PineconeNamespace,
			Metric:    pineconeindex.Metric(cfg.Index.PineconeMetric),
		}, logger.Named("pinecone"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create pinecone index: %w", err)
		}
		return idx, func() {
			// The run context may already be cancelled; wiping the namespace still needs a live one.
			closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := idx.Close(closeCtx); err != nil {
				logger.Warn("failed to close pinecone index", zap.String("namespace", idx.Namespace()), zap.Error(err))
			}
		}, nil

	default:
		return nil, func() {}, nil
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func printSummary(w io.Writer, loop *classifier.FrameLoop, dropped uint64) {
	stats := loop.Stats()
	last := loop.LastResult()
	counts := loop.Store().ClassCounts()

	fmt.Fprintf(w, "\nticks=%d skipped=%d examples=%d predictions=%d transitions=%d rejected=%d dropped=%d\n",
		stats.Ticks, stats.SkippedTicks, stats.ExamplesAdded, stats.Predictions, stats.Transitions, stats.RejectedInputs, dropped)

	for i := range counts {
		label := classifier.Label(i)
		marker := " "
		if last != nil && last.Label == label {
			marker = "*"
		}
		status := "No examples added"
		if last != nil {
			status = last.Status(label)
		} else if counts[i] > 0 {
			status = fmt.Sprintf("%d examples", counts[i])
		}
		fmt.Fprintf(w, "%s class %d: %s\n", marker, i, status)
	}
}
