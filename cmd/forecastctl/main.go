package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"demand-forecast-service/config"
	"demand-forecast-service/internal/forecast"
	"demand-forecast-service/internal/service"
	"demand-forecast-service/internal/store"
	"demand-forecast-service/internal/util"
)

// forecastctl trains and inspects model artifacts without the HTTP service,
// for batch jobs and local experiments.
func main() {
	root := &cobra.Command{
		Use:   "forecastctl",
		Short: "Offline demand forecast model management",
	}
	root.AddCommand(trainCmd(), infoCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func trainCmd() *cobra.Command {
	var modelType, period string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model from the database and write the artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if err := util.InitLogger(cfg.Server.Env); err != nil {
				return err
			}
			defer util.SyncLogger()

			db, err := store.NewStore(cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer db.Close()

			svc := service.NewForecastService(db, nil, nil, cfg.Forecast)
			result, err := svc.Train(cmd.Context(), modelType, period)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&modelType, "model-type", "", "xgboost, lightgbm, random_forest or ensemble (default from config)")
	cmd.Flags().StringVar(&period, "period", "", "daily, weekly or monthly (default from config)")
	return cmd
}

func infoCmd() *cobra.Command {
	var artifactPath string
	var topFeatures int

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Inspect a trained model artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			if artifactPath == "" {
				artifactPath = config.Load().Forecast.ArtifactPath
			}

			artifact, err := forecast.LoadArtifact(artifactPath)
			if err != nil {
				return err
			}

			fmt.Printf("run_id:      %s\n", artifact.RunID)
			fmt.Printf("model_type:  %s\n", artifact.ModelType)
			fmt.Printf("period:      %s\n", artifact.Period)
			fmt.Printf("trained_at:  %s\n", artifact.TrainedAt.Format("2006-01-02 15:04:05 MST"))
			fmt.Printf("features:    %d\n", len(artifact.FeatureNames))

			fmt.Println("metrics:")
			for name, m := range artifact.Metrics {
				fmt.Printf("  %-14s mae=%.4f rmse=%.4f mape=%.4f r2=%.4f\n", name, m.MAE, m.RMSE, m.MAPE, m.R2)
			}

			if len(artifact.Importance) > 0 {
				fmt.Printf("top %d features by split gain:\n", topFeatures)
				for _, fi := range topImportance(artifact.Importance, topFeatures) {
					fmt.Printf("  %-28s %.4f\n", fi.name, fi.gain)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&artifactPath, "artifact", "", "artifact path (default from config)")
	cmd.Flags().IntVar(&topFeatures, "top", 10, "number of features to show")
	return cmd
}

type featureGain struct {
	name string
	gain float64
}

func topImportance(importance map[string]float64, n int) []featureGain {
	ranked := make([]featureGain, 0, len(importance))
	for name, gain := range importance {
		ranked = append(ranked, featureGain{name, gain})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].gain != ranked[j].gain {
			return ranked[i].gain > ranked[j].gain
		}
		return ranked[i].name < ranked[j].name
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
