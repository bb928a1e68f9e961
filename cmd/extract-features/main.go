// extract-features reads a directory of behavioral reports (one
// subdirectory per family, per corpusio.LoadDir) and writes the
// resulting feature array to a gzip-framed file, mirroring the
// teacher's cmd/build_from_folders tool generalized from WAV samples
// to arbitrary report files.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"behavior-corpus/internal/config"
	"behavior-corpus/internal/corpusio"
	"behavior-corpus/internal/corpuserr"
	"behavior-corpus/internal/fhash"
	"behavior-corpus/internal/fvec"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	envFile := flag.String("envfile", "", "optional .env file overlaying configuration")
	dir := flag.String("dir", "", "directory of behavioral reports to extract")
	out := flag.String("out", "features.fa", "output path for the gzip-framed feature array")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	if *dir == "" {
		logger.ErrorContext(ctx, "missing -dir")
		os.Exit(1)
	}

	snap, err := config.Load(*configPath, *envFile)
	if err != nil {
		logger.ErrorContext(ctx, "loading configuration", slog.Any("error", err))
		os.Exit(1)
	}

	cfg := fvec.Config{
		NgramLen:  snap.FeaturesNgramLen,
		Delim:     snap.FeaturesNgramDelim,
		Embedding: snap.FeaturesEmbedding,
	}
	table := fhash.New(snap.FeaturesLookupTable)

	sink := func(w corpuserr.Warning) {
		logger.WarnContext(ctx, w.Message, slog.String("kind", w.Kind.String()))
	}

	logger.InfoContext(ctx, "extracting features", slog.String("dir", *dir), slog.Int("ngram_len", cfg.NgramLen))
	fa, err := corpusio.LoadDir(*dir, cfg, table, sink)
	if err != nil {
		logger.ErrorContext(ctx, "extracting features", slog.Any("error", err))
		os.Exit(1)
	}
	logger.InfoContext(ctx, "extracted feature array", slog.Int("reports", fa.Len()), slog.Int("bytes", fa.Mem()))

	f, err := os.Create(*out)
	if err != nil {
		logger.ErrorContext(ctx, "creating output file", slog.Any("error", err))
		os.Exit(1)
	}
	defer f.Close()

	if err := fa.Save(f); err != nil {
		logger.ErrorContext(ctx, "saving feature array", slog.Any("error", err))
		os.Exit(1)
	}
	logger.InfoContext(ctx, "wrote feature array", slog.String("path", *out))
}
