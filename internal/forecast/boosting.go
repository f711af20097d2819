package forecast

import (
	"math/rand"
)

// BoostParams configures a gradient-boosted tree learner.
type BoostParams struct {
	NumTrees       int     `json:"num_trees"`
	MaxDepth       int     `json:"max_depth"`
	LearningRate   float64 `json:"learning_rate"`
	Subsample      float64 `json:"subsample"`
	ColSample      float64 `json:"col_sample"`
	MinSamplesLeaf int     `json:"min_samples_leaf"`
	Seed           int64   `json:"seed"`
}

// Preset hyperparameters. Variant A optimizes accuracy, variant B trains
// with fewer, shallower trees at a higher learning rate.
func BoostPresetA(seed int64) BoostParams {
	return BoostParams{NumTrees: 200, MaxDepth: 6, LearningRate: 0.1, Subsample: 0.8, ColSample: 0.8, MinSamplesLeaf: 2, Seed: seed}
}

func BoostPresetB(seed int64) BoostParams {
	return BoostParams{NumTrees: 100, MaxDepth: 4, LearningRate: 0.15, Subsample: 0.8, ColSample: 0.8, MinSamplesLeaf: 2, Seed: seed}
}

// GradientBoost is a gradient-boosted regression tree ensemble fitted on
// squared error: each tree fits the residuals of the running prediction.
type GradientBoost struct {
	Params    BoostParams `json:"params"`
	InitValue float64     `json:"init_value"`
	Trees     []*TreeNode `json:"trees"`

	gain []float64
}

// NewGradientBoost creates an unfitted learner with the given parameters.
func NewGradientBoost(params BoostParams) *GradientBoost {
	return &GradientBoost{Params: params}
}

// Fit trains the boosted ensemble.
func (g *GradientBoost) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return &InsufficientDataError{Reason: "empty or mismatched training matrix"}
	}

	rng := rand.New(rand.NewSource(g.Params.Seed))
	n := len(X)
	g.gain = make([]float64, len(X[0]))

	g.InitValue = 0
	for _, v := range y {
		g.InitValue += v
	}
	g.InitValue /= float64(n)

	preds := make([]float64, n)
	for i := range preds {
		preds[i] = g.InitValue
	}

	residuals := make([]float64, n)
	cfg := treeConfig{maxDepth: g.Params.MaxDepth, minSamplesLeaf: g.Params.MinSamplesLeaf, colSample: g.Params.ColSample}
	g.Trees = make([]*TreeNode, 0, g.Params.NumTrees)

	for t := 0; t < g.Params.NumTrees; t++ {
		for i := range residuals {
			residuals[i] = y[i] - preds[i]
		}

		samples := subsampleRows(n, g.Params.Subsample, rng)
		tree := growTree(X, residuals, samples, cfg, rng, g.gain)
		g.Trees = append(g.Trees, tree)

		for i := range preds {
			preds[i] += g.Params.LearningRate * tree.Predict(X[i])
		}
	}
	return nil
}

// Predict returns the boosted prediction for one row.
func (g *GradientBoost) Predict(x []float64) float64 {
	out := g.InitValue
	for _, tree := range g.Trees {
		out += g.Params.LearningRate * tree.Predict(x)
	}
	return out
}

// FeatureGain returns accumulated split gain per feature from the last Fit.
func (g *GradientBoost) FeatureGain() []float64 {
	return g.gain
}

func subsampleRows(n int, fraction float64, rng *rand.Rand) []int {
	if fraction <= 0 || fraction >= 1 {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}
	count := int(float64(n) * fraction)
	if count < 1 {
		count = 1
	}
	return rng.Perm(n)[:count]
}
