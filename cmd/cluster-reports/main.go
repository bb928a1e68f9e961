// cluster-reports runs agglomerative clustering (CU) over a saved
// feature array and prints one cluster assignment line per report,
// mirroring the teacher's cmd/test_model reporting style (plain
// stdout lines rather than a JSON document).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"behavior-corpus/internal/cluster"
	"behavior-corpus/internal/config"
	"behavior-corpus/internal/farray"
	"behavior-corpus/internal/fmath"
	"behavior-corpus/internal/fvec"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	envFile := flag.String("envfile", "", "optional .env file overlaying configuration")
	in := flag.String("in", "features.fa", "input feature array")
	run := flag.Int("run", 1, "run (issue) number used to namespace cluster names")
	bugCompat := flag.Bool("bug-compat", false, "reproduce the reference linkage loop's self-skip-guard reading instead of the corrected one")
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

	norms := make([]float64, fa.Len())
	for i, v := range fa.X {
		norms[i] = fvec.Norm2(v)
	}

	logger.InfoContext(ctx, "building distance matrix", slog.Int("points", fa.Len()))
	dm, err := cluster.Fill(fa.Len(), func(i, j int) float64 {
		dot := fmath.Dot(fa.X[i], fa.X[j])
		return fmath.Euclidean(norms[i], norms[j], dot)
	})
	if err != nil {
		logger.ErrorContext(ctx, "building distance matrix", slog.Any("error", err))
		os.Exit(1)
	}

	logger.InfoContext(ctx, "running linkage",
		slog.Float64("min_dist", snap.ClusterMinDist),
		slog.String("link_mode", string(snap.ClusterLinkMode)))
	result, err := cluster.Linkage(dm, snap.ClusterMinDist, snap.ClusterLinkMode, *run, *bugCompat)
	if err != nil {
		logger.ErrorContext(ctx, "running linkage", slog.Any("error", err))
		os.Exit(1)
	}

	trimmed, num := cluster.Trim(result.Cluster, snap.ClusterRejectNum)
	logger.InfoContext(ctx, "clustering complete", slog.Int("clusters", num))

	for i, id := range trimmed {
		fmt.Printf("%s\t%s\n", fa.X[i].Src, cluster.Name(*run, id))
	}
}
