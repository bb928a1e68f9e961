// build-prototypes runs farthest-first prototype extraction (PR) over a
// saved feature array and writes the resulting prototype array back
// out, in the spirit of the teacher's cmd/rebuild_prototypes tool.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"behavior-corpus/internal/config"
	"behavior-corpus/internal/farray"
	"behavior-corpus/internal/prototype"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	envFile := flag.String("envfile", "", "optional .env file overlaying configuration")
	in := flag.String("in", "features.fa", "input feature array")
	out := flag.String("out", "prototypes.fa", "output path for the prototype array")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	snap, err := config.Load(*configPath, *envFile)
	if err != nil {
		logger.ErrorContext(ctx, "loading configuration", slog.Any("error", err))
		os.Exit(1)
	}

	f, err := os.Open(*in)
	if err != nil {
		logger.ErrorContext(ctx, "opening input feature array", slog.Any("error", err))
		os.Exit(1)
	}
	fa, err := farray.Load(f)
	f.Close()
	if err != nil {
		logger.ErrorContext(ctx, "loading input feature array", slog.Any("error", err))
		os.Exit(1)
	}

	logger.InfoContext(ctx, "extracting prototypes",
		slog.Int("inputs", fa.Len()),
		slog.Float64("max_dist", snap.PrototypesMaxDist),
		slog.Int("max_num", snap.PrototypesMaxNum))

	result, err := prototype.Extract(fa, snap.PrototypesMaxDist, snap.PrototypesMaxNum)
	if err != nil {
		logger.ErrorContext(ctx, "extracting prototypes", slog.Any("error", err))
		os.Exit(1)
	}
	logger.InfoContext(ctx, "extracted prototypes", slog.Int("count", result.Protos.Len()))

	outFile, err := os.Create(*out)
	if err != nil {
		logger.ErrorContext(ctx, "creating output file", slog.Any("error", err))
		os.Exit(1)
	}
	defer outFile.Close()

	if err := result.Protos.Save(outFile); err != nil {
		logger.ErrorContext(ctx, "saving prototype array", slog.Any("error", err))
		os.Exit(1)
	}
	logger.InfoContext(ctx, "wrote prototype array", slog.String("path", *out))
}
