package classifier_test

import (
	"context"
	"testing"

	"github.com/okian/pitwall/internal/domain/classifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var classes = []string{"CONSERVE", "PIT_NOW", "PUSH"}

// x[0] <= 0.5 -> x[1] <= 10 ? PUSH-heavy : CONSERVE-heavy ; else PIT_NOW
func stump() classifier.Tree {
	return classifier.Tree{
		ChildrenLeft:  []int{1, 3, -1, -1, -1},
		ChildrenRight: []int{2, 4, -1, -1, -1},
		Feature:       []int{0, 1, -2, -2, -2},
		Threshold:     []float64{0.5, 10, -2, -2, -2},
		Value: [][]float64{
			{0, 0, 0}, {0, 0, 0},
			{0, 20, 0},
			{1, 0, 9},
			{6, 2, 2},
		},
	}
}

func TestDecisionTreePredict(t *testing.T) {
	m, err := classifier.New(classifier.KindDecisionTree, classes, 2, []classifier.Tree{stump()})
	require.NoError(t, err)

	tests := []struct {
		name       string
		x          []float64
		label      string
		confidence float64
	}{
		{"right branch", []float64{1, 0}, "PIT_NOW", 1},
		{"left-left", []float64{0, 5}, "PUSH", 0.9},
		{"threshold goes left", []float64{0.5, 10}, "PUSH", 0.9},
		{"left-right", []float64{0, 11}, "CONSERVE", 0.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := m.Predict(context.Background(), tt.x)
			require.NoError(t, err)
			assert.Equal(t, tt.label, p.Label)
			assert.InDelta(t, tt.confidence, p.Confidence, 1e-9)
			assert.Len(t, p.Probabilities, len(classes))
		})
	}
}

func TestForestAveragesTrees(t *testing.T) {
	other := classifier.Tree{
		ChildrenLeft:  []int{-1},
		ChildrenRight: []int{-1},
		Feature:       []int{-2},
		Threshold:     []float64{-2},
		Value:         [][]float64{{10, 0, 0}},
	}
	m, err := classifier.New(classifier.KindRandomForest, classes, 2, []classifier.Tree{stump(), other})
	require.NoError(t, err)

	p, err := m.Predict(context.Background(), []float64{0, 11})
	require.NoError(t, err)
	assert.Equal(t, "CONSERVE", p.Label)
	assert.InDelta(t, 0.8, p.Confidence, 1e-9)
	assert.InDelta(t, 0.1, p.Probabilities[1], 1e-9)
}

func TestArgmaxPrefersFirstClassOnTie(t *testing.T) {
	tie := classifier.Tree{
		ChildrenLeft:  []int{-1},
		ChildrenRight: []int{-1},
		Feature:       []int{-2},
		Threshold:     []float64{-2},
		Value:         [][]float64{{0, 5, 5}},
	}
	m, err := classifier.New(classifier.KindDecisionTree, classes, 1, []classifier.Tree{tie})
	require.NoError(t, err)

	p, err := m.Predict(context.Background(), []float64{0})
	require.NoError(t, err)
	assert.Equal(t, "PIT_NOW", p.Label)
	assert.InDelta(t, 0.5, p.Confidence, 1e-9)
}

func TestPredictErrors(t *testing.T) {
	m, err := classifier.New(classifier.KindDecisionTree, classes, 2, []classifier.Tree{stump()})
	require.NoError(t, err)

	_, err = m.Predict(context.Background(), []float64{1})
	require.ErrorIs(t, err, classifier.ErrFeatureCount)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Predict(ctx, []float64{1, 1})
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsMalformedModels(t *testing.T) {
	bad := stump()
	bad.ChildrenLeft[1] = 9

	shortValue := stump()
	shortValue.Value[2] = []float64{1}

	badFeature := stump()
	badFeature.Feature[0] = 7

	tests := []struct {
		name  string
		kind  string
		trees []classifier.Tree
		want  error
	}{
		{"no trees", classifier.KindRandomForest, nil, classifier.ErrEmptyModel},
		{"child out of range", classifier.KindDecisionTree, []classifier.Tree{bad}, classifier.ErrMalformedTree},
		{"leaf width", classifier.KindDecisionTree, []classifier.Tree{shortValue}, classifier.ErrMalformedTree},
		{"feature index", classifier.KindDecisionTree, []classifier.Tree{badFeature}, classifier.ErrMalformedTree},
		{"two trees in a decision tree", classifier.KindDecisionTree, []classifier.Tree{stump(), stump()}, classifier.ErrMalformedTree},
		{"unknown kind", "svm", []classifier.Tree{stump()}, classifier.ErrMalformedTree},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := classifier.New(tt.kind, classes, 2, tt.trees)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
