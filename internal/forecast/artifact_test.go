package forecast

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demand-forecast-service/internal/models"
)

func TestArtifactSaveLoadRoundTrip(t *testing.T) {
	series := constantSeries(1, 2, day(2024, time.March, 1), 60, 10)
	predictor, artifact := trainArtifact(t, series, models.ModelEnsemble, models.PeriodDaily)

	path := filepath.Join(t.TempDir(), "models", "artifact.json")
	require.NoError(t, artifact.Save(path))

	loaded, err := LoadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, artifact.RunID, loaded.RunID)
	assert.Equal(t, artifact.FeatureNames, loaded.FeatureNames)
	assert.Len(t, loaded.Models, 3)

	// The reloaded models must predict identically.
	row := predictor.engineer.BuildColdStartRow(1, 2, day(2024, time.May, 1))
	scaled, err := loaded.Scaler.TransformRow(row)
	require.NoError(t, err)

	before, err := artifact.PredictRaw(scaled)
	require.NoError(t, err)
	after, err := loaded.PredictRaw(scaled)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLoadArtifactMissingFile(t *testing.T) {
	_, err := LoadArtifact(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, ErrArtifactUnavailable)
}

func TestLoadArtifactCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifact.json")
	require.NoError(t, os.WriteFile(path, []byte("not json{"), 0o644))

	_, err := LoadArtifact(path)
	assert.ErrorIs(t, err, ErrArtifactUnavailable)
}

func TestLoadArtifactVersionMismatch(t *testing.T) {
	series := constantSeries(1, 2, day(2024, time.March, 1), 60, 10)
	_, artifact := trainArtifact(t, series, models.ModelXGBoost, models.PeriodDaily)
	artifact.Version = ArtifactSchemaVersion + 1

	path := filepath.Join(t.TempDir(), "artifact.json")
	data, err := json.Marshal(artifact)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = LoadArtifact(path)
	var sErr *SchemaMismatchError
	assert.ErrorAs(t, err, &sErr)
}

func TestLoadArtifactMissingSchema(t *testing.T) {
	series := constantSeries(1, 2, day(2024, time.March, 1), 60, 10)
	_, artifact := trainArtifact(t, series, models.ModelXGBoost, models.PeriodDaily)
	artifact.FeatureNames = nil

	path := filepath.Join(t.TempDir(), "artifact.json")
	data, err := json.Marshal(artifact)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = LoadArtifact(path)
	var sErr *SchemaMismatchError
	assert.ErrorAs(t, err, &sErr)
}

func TestSaveIsAtomicOverExisting(t *testing.T) {
	series := constantSeries(1, 2, day(2024, time.March, 1), 60, 10)
	_, artifact := trainArtifact(t, series, models.ModelXGBoost, models.PeriodDaily)

	path := filepath.Join(t.TempDir(), "artifact.json")
	require.NoError(t, artifact.Save(path))

	artifact.RunID = "second-run"
	require.NoError(t, artifact.Save(path))

	loaded, err := LoadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, "second-run", loaded.RunID)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files may be left behind")
}
