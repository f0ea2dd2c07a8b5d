// Package artifact holds the trained model artifacts and the schema they were
// fitted with. Artifacts are immutable after construction and shared by all
// requests without locking.
package artifact

import (
	"context"
	"maps"
	"slices"

	"github.com/okian/pitwall/internal/domain/classifier"
)

// Model ids of the two variants in a bundle.
const (
	DecisionTreeID = "decision_tree"
	RandomForestID = "random_forest"
)

// Schema is the training-time column order and category encoding.
type Schema struct {
	FeatureColumns []string
	// Categories maps a categorical field to its fitted classes; the code of
	// a value is its index.
	Categories map[string][]string
}

// Code returns the fitted code of value for field.
func (s Schema) Code(field, value string) (int, bool) {
	classes, ok := s.Categories[field]
	if !ok {
		return 0, false
	}
	i := slices.Index(classes, value)
	return i, i >= 0
}

// Equal reports whether two schemas have identical column order and mappings.
func (s Schema) Equal(o Schema) bool {
	return slices.Equal(s.FeatureColumns, o.FeatureColumns) &&
		maps.EqualFunc(s.Categories, o.Categories, slices.Equal[[]string])
}

// ModelArtifact is one trained classifier with its validation accuracy.
type ModelArtifact struct {
	id       string
	accuracy float64
	schema   Schema
	model    *classifier.Model
}

// NewModelArtifact binds a classifier to its schema. The classifier width must
// match the feature columns.
func NewModelArtifact(id string, accuracy float64, schema Schema, model *classifier.Model) (*ModelArtifact, error) {
	if model == nil {
		return nil, Mismatch("model %s has no classifier", id)
	}
	if model.Features != len(schema.FeatureColumns) {
		return nil, Mismatch("model %s expects %d features, schema has %d", id, model.Features, len(schema.FeatureColumns))
	}
	if accuracy < 0 || accuracy > 1 {
		return nil, Mismatch("model %s accuracy %v outside [0,1]", id, accuracy)
	}
	return &ModelArtifact{id: id, accuracy: accuracy, schema: schema, model: model}, nil
}

// ID returns the model id.
func (a *ModelArtifact) ID() string { return a.id }

// Accuracy returns the held-out validation accuracy.
func (a *ModelArtifact) Accuracy() float64 { return a.accuracy }

// Schema returns the schema the model was fitted with.
func (a *ModelArtifact) Schema() Schema { return a.schema }


// Predict classifies one feature vector.
func (a *ModelArtifact) Predict(ctx context.Context, x []float64) (classifier.Prediction, error) {
	return a.model.Predict(ctx, x)
}

// Metadata is the training summary shipped with the bundle.
type Metadata struct {
	DTAccuracy   float64  `json:"dt_accuracy"`
	RFAccuracy   float64  `json:"rf_accuracy"`
	EdgeAccuracy float64  `json:"edge_accuracy"`
	TrainSamples int      `json:"train_samples"`
	TestSamples  int      `json:"test_samples"`
	FeatureCount int      `json:"feature_count"`
	Strategies   []string `json:"strategies"`
}

// Bundle is the pair of variants that serve requests together.
type Bundle struct {
	Version      string
	DecisionTree *ModelArtifact
	RandomForest *ModelArtifact
	Metadata     Metadata
}

// NewBundle pairs the two variants and verifies that they were fitted with the
// same column order and category mappings.
func NewBundle(version string, dt, rf *ModelArtifact, meta Metadata) (*Bundle, error) {
	if dt == nil || rf == nil {
		return nil, Mismatch("bundle needs both %s and %s", DecisionTreeID, RandomForestID)
	}
	if !slices.Equal(dt.schema.FeatureColumns, rf.schema.FeatureColumns) {
		return nil, Mismatch("feature column order differs between %s and %s", dt.id, rf.id)
	}
	if !dt.schema.Equal(rf.schema) {
		return nil, Mismatch("category mappings differ between %s and %s", dt.id, rf.id)
	}
	if len(meta.Strategies) > 0 {
		for _, a := range []*ModelArtifact{dt, rf} {
			for _, c := range a.model.Classes {
				if !slices.Contains(meta.Strategies, c) {
					return nil, Mismatch("model %s emits unknown strategy %q", a.id, c)
				}
			}
		}
	}
	return &Bundle{Version: version, DecisionTree: dt, RandomForest: rf, Metadata: meta}, nil
}

// Schema returns the shared schema.
func (b *Bundle) Schema() Schema { return b.DecisionTree.schema }

// Models returns both variants, decision tree first.
func (b *Bundle) Models() []*ModelArtifact {
	return []*ModelArtifact{b.DecisionTree, b.RandomForest}
}
