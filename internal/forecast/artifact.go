package forecast

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"demand-forecast-service/internal/models"
)

// ArtifactSchemaVersion is bumped whenever the serialized layout or the
// feature semantics change incompatibly. Load refuses mismatched versions.
const ArtifactSchemaVersion = 1

// Artifact is the immutable snapshot one training run produces: fitted
// model(s), scaler, the ordered feature schema, fallback statistics and
// metadata. A new run writes a new artifact; nothing updates one in place.
type Artifact struct {
	Version      int                            `json:"version"`
	RunID        string                         `json:"run_id"`
	ModelType    string                         `json:"model_type"`
	Period       string                         `json:"period"`
	FeatureNames []string                       `json:"feature_names"`
	Models       map[string]*ModelEnvelope      `json:"models"`
	Scaler       *StandardScaler                `json:"scaler"`
	Fallback     FallbackStats                  `json:"fallback_stats"`
	Metrics      map[string]models.ModelMetrics `json:"metrics"`
	Importance   map[string]float64             `json:"feature_importance,omitempty"`
	TrainedAt    time.Time                      `json:"trained_at"`
}

// Save writes the artifact atomically: a temp file in the target directory
// is renamed over the destination so readers never observe a partial file.
func (a *Artifact) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encoding artifact: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".artifact-*.json")
	if err != nil {
		return fmt.Errorf("creating temp artifact: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing artifact: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming artifact: %w", err)
	}
	return nil
}

// LoadArtifact reads and verifies an artifact file. A missing file maps to
// ErrArtifactUnavailable; a version or schema problem is fatal since it
// indicates a deployment defect, not bad input.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactUnavailable, path)
		}
		return nil, fmt.Errorf("reading artifact %s: %w", path, err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: corrupt artifact %s: %v", ErrArtifactUnavailable, path, err)
	}

	if a.Version != ArtifactSchemaVersion {
		return nil, &SchemaMismatchError{
			Detail: fmt.Sprintf("artifact %s has version %d, this build expects %d", path, a.Version, ArtifactSchemaVersion),
		}
	}
	if len(a.FeatureNames) == 0 || len(a.Models) == 0 || a.Scaler == nil {
		return nil, &SchemaMismatchError{
			Detail: fmt.Sprintf("artifact %s is missing feature schema, models or scaler", path),
		}
	}
	if !isValidPeriod(a.Period) {
		return nil, &SchemaMismatchError{
			Detail: fmt.Sprintf("artifact %s has unknown period %q", path, a.Period),
		}
	}
	return &a, nil
}

// PredictRaw applies the fitted members to an already scaled row, averaging
// across the ensemble. The output is in the training period's native units.
func (a *Artifact) PredictRaw(scaled []float64) (float64, error) {
	if len(a.Models) == 0 {
		return 0, ErrArtifactUnavailable
	}

	var sum float64
	for name, env := range a.Models {
		reg, err := env.Regressor()
		if err != nil {
			return 0, fmt.Errorf("model %s: %w", name, err)
		}
		sum += reg.Predict(scaled)
	}
	return sum / float64(len(a.Models)), nil
}
