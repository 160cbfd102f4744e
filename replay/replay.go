// Package replay plays back a recorded session of embeddings so the frame loop
// can run without a camera or an embedding model.
//
// A recording is JSON Lines, one frame per line:
//
//	{"train": 1, "vector": [0.12, 0.4, ...]}
//	{"vector": [0.11, 0.38, ...]}
//	{"paused": true}
//
// "train" is the label held down while the frame was captured (absent or -1: none).
// A frame without "vector" had no embedding; a paused frame had no image at all.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	classifier "github.com/FrenchMajesty/frame-classifier"
)

// maxLineSize bounds a single recorded frame
const maxLineSize = 4 * 1024 * 1024

// Record is one recorded frame
type Record struct {
	Train  *int      `json:"train,omitempty"`
	Vector []float32 `json:"vector,omitempty"`
	Paused bool      `json:"paused,omitempty"`
}

// Session replays a recording. It implements classifier.FrameSource,
// classifier.FeatureExtractor and classifier.TrainingSignal.
type Session struct {
	scanner *bufio.Scanner

	mu      sync.Mutex
	seq     uint64
	current Record
	train   classifier.Label

	outstanding atomic.Int64
}

// NewSession reads a recording from r
func NewSession(r io.Reader) *Session {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Session{scanner: scanner, train: classifier.NoLabel}
}

// Frame implements classifier.FrameSource. It returns io.EOF after the last record.
func (s *Session) Frame(ctx context.Context) (*classifier.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.next()
	if err != nil {
		return nil, err
	}
	s.seq++
	s.current = rec
	s.train = classifier.NoLabel
	if rec.Train != nil {
		s.train = classifier.Label(*rec.Train)
	}

	if rec.Paused {
		return nil, fmt.Errorf("frame %d paused: %w", s.seq, classifier.ErrUnavailable)
	}
	return &classifier.Frame{Seq: s.seq, Timestamp: time.Now()}, nil
}

func (s *Session) next() (Record, error) {
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return Record{}, fmt.Errorf("failed to decode frame %d: %w", s.seq+1, err)
		}
		return rec, nil
	}
	if err := s.scanner.Err(); err != nil {
		return Record{}, fmt.Errorf("failed to read recording: %w", err)
	}
	return Record{}, io.EOF
}

// Extract implements classifier.FeatureExtractor for the frame last returned by Frame
func (s *Session) Extract(ctx context.Context, frame *classifier.Frame) (*classifier.Embedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if frame == nil || frame.Seq != s.seq {
		return nil, fmt.Errorf("frame is not the current recording frame: %w", classifier.ErrUnavailable)
	}
	if len(s.current.Vector) == 0 {
		return nil, fmt.Errorf("frame %d has no embedding: %w", s.seq, classifier.ErrUnavailable)
	}

	vector := append([]float32(nil), s.current.Vector...)
	s.outstanding.Add(1)
	return classifier.NewEmbedding(vector, func() { s.outstanding.Add(-1) }), nil
}

// Current implements classifier.TrainingSignal
func (s *Session) Current() classifier.Label {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.train
}

// Outstanding returns the number of embeddings handed out and not yet released
func (s *Session) Outstanding() int64 {
	return s.outstanding.Load()
}
