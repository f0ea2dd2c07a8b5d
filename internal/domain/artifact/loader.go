package artifact

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/okian/pitwall/internal/domain/classifier"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the bundle entry point inside the artifacts directory.
const ManifestFile = "manifest.yaml"

//go:embed metadata.schema.json
var metadataSchemaJSON []byte

// Manifest names the files of a bundle relative to its directory.
type Manifest struct {
	Version        string `yaml:"version"`
	DecisionTree   string `yaml:"decision_tree"`
	RandomForest   string `yaml:"random_forest"`
	LabelEncoders  string `yaml:"label_encoders"`
	FeatureColumns string `yaml:"feature_columns"`
	Metadata       string `yaml:"metadata"`
}

func (m Manifest) validate() error {
	missing := []string{}
	for name, v := range map[string]string{
		"decision_tree":   m.DecisionTree,
		"random_forest":   m.RandomForest,
		"label_encoders":  m.LabelEncoders,
		"feature_columns": m.FeatureColumns,
		"metadata":        m.Metadata,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%w: missing %s", ErrManifest, strings.Join(missing, ", "))
	}
	return nil
}

// blob is the exported classifier format.
type blob struct {
	ModelID      string            `json:"model_id"`
	Kind         string            `json:"kind"`
	Classes      []string          `json:"classes"`
	FeatureNames []string          `json:"feature_names"`
	Trees        []classifier.Tree `json:"trees"`
}

// LoadBundle reads manifest.yaml from dir and builds the bundle. The two
// classifier blobs are decoded in parallel.
func LoadBundle(ctx context.Context, dir string) (*Bundle, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifest, err)
	}
	var man Manifest
	if err := yaml.Unmarshal(raw, &man); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifest, err)
	}
	if err := man.validate(); err != nil {
		return nil, err
	}

	var columns []string
	if err := readJSON(filepath.Join(dir, man.FeatureColumns), &columns); err != nil {
		return nil, fmt.Errorf("feature columns: %w", err)
	}
	if len(columns) == 0 {
		return nil, Mismatch("feature columns are empty")
	}
	var encoders map[string][]string
	if err := readJSON(filepath.Join(dir, man.LabelEncoders), &encoders); err != nil {
		return nil, fmt.Errorf("label encoders: %w", err)
	}
	meta, err := loadMetadata(filepath.Join(dir, man.Metadata))
	if err != nil {
		return nil, err
	}
	if meta.FeatureCount != len(columns) {
		return nil, Mismatch("metadata feature_count %d, feature columns %d", meta.FeatureCount, len(columns))
	}
	schema := Schema{FeatureColumns: columns, Categories: encoders}

	var dt, rf *ModelArtifact
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dt, err = loadModel(ctx, filepath.Join(dir, man.DecisionTree), DecisionTreeID, meta.DTAccuracy, schema)
		return err
	})
	g.Go(func() error {
		var err error
		rf, err = loadModel(ctx, filepath.Join(dir, man.RandomForest), RandomForestID, meta.RFAccuracy, schema)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewBundle(man.Version, dt, rf, meta)
}

func loadModel(ctx context.Context, path, id string, accuracy float64, schema Schema) (*ModelArtifact, error) {
	var b blob
	if err := readJSON(path, &b); err != nil {
		return nil, fmt.Errorf("model %s: %w", id, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.ModelID != "" && b.ModelID != id {
		return nil, Mismatch("file %s holds model %q, manifest expects %q", filepath.Base(path), b.ModelID, id)
	}
	if b.Kind != id {
		return nil, Mismatch("model %s has kind %q", id, b.Kind)
	}
	if !slices.Equal(b.FeatureNames, schema.FeatureColumns) {
		return nil, Mismatch("model %s feature names differ from feature columns", id)
	}
	m, err := classifier.New(b.Kind, b.Classes, len(b.FeatureNames), b.Trees)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", id, err)
	}
	return NewModelArtifact(id, accuracy, schema, m)
}

func loadMetadata(path string) (Metadata, error) {
	raw, err := readFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("metadata: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Metadata{}, fmt.Errorf("metadata: %w", err)
	}
	if err := metadataSchema().Validate(doc); err != nil {
		return Metadata{}, Mismatch("metadata: %v", err)
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Metadata{}, fmt.Errorf("metadata: %w", err)
	}
	return meta, nil
}

var metadataSchema = sync.OnceValue(func() *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal(metadataSchemaJSON, &doc); err != nil {
		panic(fmt.Sprintf("parse embedded metadata schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("metadata.schema.json", doc); err != nil {
		panic(fmt.Sprintf("add metadata schema: %v", err))
	}
	s, err := c.Compile("metadata.schema.json")
	if err != nil {
		panic(fmt.Sprintf("compile metadata schema: %v", err))
	}
	return s
})

func readJSON(path string, v any) error {
	raw, err := readFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// readFile returns the file contents, transparently inflating *.gz files.
func readFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return raw, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
