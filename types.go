package classifier

import "fmt"

// Label identifies a class in [0, NumClasses)
type Label int

// NoLabel is the "none" label: no examples exist, or nothing is being trained.
const NoLabel Label = -1

// Valid reports whether l is a real class label for numClasses classes
func (l Label) Valid(numClasses int) bool {
	return l >= 0 && int(l) < numClasses
}

func (l Label) String() string {
	if l == NoLabel {
		return "none"
	}
	return fmt.Sprintf("%d", int(l))
}

// Example is a training vector stored for one class
type Example struct {
	// ID is unique per stored example; indexes use it as their document key
	ID string

	Label Label

	// Seq is the store-wide insertion order. It breaks distance ties.
	Seq uint64

	Vector []float32
}

// Result represents one classification
type Result struct {
	// Label is the predicted class, or NoLabel when the store is empty
	Label Label

	// Confidences holds the fraction of neighbor votes per class. Sums to 1 when any example exists.
	Confidences []float64

	// Counts is the number of stored examples per class at prediction time
	Counts []int

	// Neighbors is the number of neighbors that voted
	Neighbors int
}

// Status renders the per-class status line, e.g. "12 examples - 70%".
// Classes without examples report "No examples added".
func (r *Result) Status(label Label) string {
	if r == nil || !label.Valid(len(r.Counts)) || r.Counts[label] == 0 {
		return "No examples added"
	}
	return fmt.Sprintf("%d examples - %.0f%%", r.Counts[label], r.Confidences[label]*100)
}

// Stats provides statistics about the frame loop
type Stats struct {
	// Ticks is the number of completed ticks, skipped ones included
	Ticks uint64

	// SkippedTicks counts ticks with no frame, no embedding or no neighbors
	SkippedTicks uint64

	// ExamplesAdded counts accepted training examples
	ExamplesAdded uint64

	// Predictions counts produced classification results
	Predictions uint64

	// Transitions counts sink invocations
	Transitions uint64

	// RejectedInputs counts add/predict calls rejected with ErrInvalidInput
	RejectedInputs uint64
}
