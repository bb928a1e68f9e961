// classify-reports assigns each report in a query feature array to its
// nearest labeled prototype (CL), printing one prediction line per
// query, mirroring the teacher's cmd/test_model prediction loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"behavior-corpus/internal/classify"
	"behavior-corpus/internal/config"
	"behavior-corpus/internal/farray"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	envFile := flag.String("envfile", "", "optional .env file overlaying configuration")
	queriesPath := flag.String("queries", "", "query feature array to classify")
	protosPath := flag.String("prototypes", "", "labeled prototype feature array")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	if *queriesPath == "" || *protosPath == "" {
		logger.ErrorContext(ctx, "both -queries and -prototypes are required")
		os.Exit(1)
	}

	snap, err := config.Load(*configPath, *envFile)
	if err != nil {
		logger.ErrorContext(ctx, "loading configuration", slog.Any("error", err))
		os.Exit(1)
	}

	queries, err := loadFA(*queriesPath)
	if err != nil {
		logger.ErrorContext(ctx, "loading query array", slog.Any("error", err))
		os.Exit(1)
	}
	protos, err := loadFA(*protosPath)
	if err != nil {
		logger.ErrorContext(ctx, "loading prototype array", slog.Any("error", err))
		os.Exit(1)
	}

	logger.InfoContext(ctx, "classifying", slog.Int("queries", queries.Len()), slog.Int("prototypes", protos.Len()))
	assigns, err := classify.Classify(queries, protos, snap.ClassifyMaxDist)
	if err != nil {
		logger.ErrorContext(ctx, "classifying", slog.Any("error", err))
		os.Exit(1)
	}

	rejected := 0
	for i, a := range assigns {
		if a.Rejected {
			rejected++
			fmt.Printf("%s\trejected\t%.6f\n", queries.X[i].Src, a.Dist)
			continue
		}
		label, _ := queries.Labels.Name(a.Label)
		fmt.Printf("%s\t%s\t%.6f\n", queries.X[i].Src, label, a.Dist)
	}
	logger.InfoContext(ctx, "classification complete", slog.Int("rejected", rejected))
}

func loadFA(path string) (*farray.FA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return farray.Load(f)
}
