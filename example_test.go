package classifier_test

import (
	"context"
	"fmt"
	"log"
	"strings"

	classifier "github.com/FrenchMajesty/frame-classifier"
	"github.com/FrenchMajesty/frame-classifier/replay"
	"github.com/FrenchMajesty/frame-classifier/sink"
)

// Example shows voting directly against a store
func ExampleClassifier() {
	ctx := context.Background()

	store, err := classifier.NewExampleStore(2, 2)
	if err != nil {
		log.Fatal(err)
	}
	for _, ex := range []struct {
		label  classifier.Label
		vector []float32
	}{
		{0, []float32{0, 0}},
		{0, []float32{0, 1}},
		{1, []float32{5, 5}},
	} {
		if _, err := store.AddExample(ctx, ex.label, ex.vector); err != nil {
			log.Fatal(err)
		}
	}

	clf, err := classifier.NewClassifier(store, 3)
	if err != nil {
		log.Fatal(err)
	}

	result, err := clf.Predict(ctx, []float32{0.5, 0.5})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("label:", result.Label)
	fmt.Println("class 0:", result.Status(0))
	fmt.Println("class 1:", result.Status(1))
	// Output:
	// label: 0
	// class 0: 2 examples - 67%
	// class 1: 1 examples - 33%
}

// Example shows the frame loop running over a recorded session
func ExampleFrameLoop() {
	recording := strings.NewReader(`{"train": 0, "vector": [0, 0]}
{"train": 1, "vector": [10, 10]}
{"vector": [1, 1]}
{"vector": [0, 1]}
{"paused": true}
{"vector": [9, 9]}
`)
	session := replay.NewSession(recording)

	loop, err := classifier.NewFrameLoop(classifier.Config{
		NumClasses: 2,
		K:          1,
		Dim:        2,
		TickRate:   1000,
	}, classifier.Dependencies{
		Source:    session,
		Extractor: session,
		Training:  session,
		Sink: sink.Func(func(label classifier.Label) {
			fmt.Println("transition ->", label)
		}),
	})
	if err != nil {
		log.Fatal(err)
	}

	if err := loop.Run(context.Background()); err != nil {
		log.Fatal(err)
	}

	stats := loop.Stats()
	fmt.Printf("examples=%d predictions=%d skipped=%d\n", stats.ExamplesAdded, stats.Predictions, stats.SkippedTicks)
	// Output:
	// transition -> 0
	// transition -> 1
	// transition -> 0
	// transition -> 1
	// examples=2 predictions=5 skipped=2
}
