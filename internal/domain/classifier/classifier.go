// Package classifier evaluates array-encoded decision trees and forests
// exported by the training pipeline.
package classifier

import (
	"context"
	"errors"
	"fmt"
)

// Kinds of classifier blob.
const (
	KindDecisionTree = "decision_tree"
	KindRandomForest = "random_forest"
)

const leaf = -1

var (
	// ErrMalformedTree reports inconsistent tree arrays.
	ErrMalformedTree = errors.New("malformed tree")
	// ErrFeatureCount reports an input vector of the wrong width.
	ErrFeatureCount = errors.New("feature count mismatch")
	// ErrEmptyModel reports a classifier with no trees or no classes.
	ErrEmptyModel = errors.New("empty model")
)

// Tree is one binary tree in parallel-array form. Node i splits on
// Feature[i] at Threshold[i]; a ChildrenLeft value of -1 marks a leaf whose
// Value row holds per-class sample counts.
type Tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// Validate checks array lengths and child indices.
func (t Tree) Validate(features, classes int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return fmt.Errorf("%w: no nodes", ErrMalformedTree)
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("%w: array lengths differ", ErrMalformedTree)
	}
	for i := range n {
		l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
		if l == leaf {
			if len(t.Value[i]) != classes {
				return fmt.Errorf("%w: node %d has %d class counts, want %d", ErrMalformedTree, i, len(t.Value[i]), classes)
			}
			continue
		}
		if l <= i || r <= i || l >= n || r >= n {
			return fmt.Errorf("%w: node %d has invalid children %d/%d", ErrMalformedTree, i, l, r)
		}
		if f := t.Feature[i]; f < 0 || f >= features {
			return fmt.Errorf("%w: node %d splits on feature %d", ErrMalformedTree, i, f)
		}
	}
	return nil
}

// proba walks from the root to a leaf and returns its normalised distribution.
func (t Tree) proba(x []float64) []float64 {
	node := 0
	for t.ChildrenLeft[node] != leaf {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return normalise(t.Value[node])
}

func normalise(counts []float64) []float64 {
	out := make([]float64, len(counts))
	var total float64
	for _, c := range counts {
		total += c
	}
	if total <= 0 {
		return out
	}
	for i, c := range counts {
		out[i] = c / total
	}
	return out
}

// Prediction is the result of one classification.
type Prediction struct {
	Label         string
	Confidence    float64
	Probabilities []float64
}

// Model is an immutable classifier over a fixed feature width.
type Model struct {
	Kind     string
	Classes  []string
	Features int
	Trees    []Tree
}

// New validates the trees and returns a Model. A decision tree must carry
// exactly one tree.
func New(kind string, classes []string, features int, trees []Tree) (*Model, error) {
	if len(classes) == 0 || len(trees) == 0 {
		return nil, ErrEmptyModel
	}
	switch kind {
	case KindDecisionTree:
		if len(trees) != 1 {
			return nil, fmt.Errorf("%w: decision tree has %d trees", ErrMalformedTree, len(trees))
		}
	case KindRandomForest:
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrMalformedTree, kind)
	}
	for i, t := range trees {
		if err := t.Validate(features, len(classes)); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return &Model{Kind: kind, Classes: classes, Features: features, Trees: trees}, nil
}

// Predict averages tree distributions and returns the first most probable
// class. The context is checked between trees.
func (m *Model) Predict(ctx context.Context, x []float64) (Prediction, error) {
	if len(x) != m.Features {
		return Prediction{}, fmt.Errorf("%w: got %d, want %d", ErrFeatureCount, len(x), m.Features)
	}
	sum := make([]float64, len(m.Classes))
	for _, t := range m.Trees {
		if err := ctx.Err(); err != nil {
			return Prediction{}, err
		}
		for i, p := range t.proba(x) {
			sum[i] += p
		}
	}
	n := float64(len(m.Trees))
	best := 0
	for i := range sum {
		sum[i] /= n
		if sum[i] > sum[best] {
			best = i
		}
	}
	return Prediction{Label: m.Classes[best], Confidence: sum[best], Probabilities: sum}, nil
}
