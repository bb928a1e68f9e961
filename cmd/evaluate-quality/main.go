// evaluate-quality compares ground-truth labels against predicted
// cluster/class assignments (QE) and prints the resulting precision,
// recall, F-measure, Rand, and adjusted-Rand figures, mirroring the
// teacher's cmd/evaluate_model reporting style.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"behavior-corpus/internal/corpuserr"
	"behavior-corpus/internal/quality"
)

func main() {
	truthPath := flag.String("truth", "", "path to a file of one ground-truth label int per line")
	predPath := flag.String("predicted", "", "path to a file of one predicted label int per line, same order")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	if *truthPath == "" || *predPath == "" {
		logger.ErrorContext(ctx, "both -truth and -predicted are required")
		os.Exit(1)
	}

	y, err := readInts(*truthPath)
	if err != nil {
		logger.ErrorContext(ctx, "reading ground-truth labels", slog.Any("error", err))
		os.Exit(1)
	}
	a, err := readInts(*predPath)
	if err != nil {
		logger.ErrorContext(ctx, "reading predicted labels", slog.Any("error", err))
		os.Exit(1)
	}
	if len(y) != len(a) {
		logger.ErrorContext(ctx, "mismatched label counts", slog.Int("truth", len(y)), slog.Int("predicted", len(a)))
		os.Exit(1)
	}

	v := quality.Evaluate(y, a)
	fmt.Printf("precision:     %.4f\n", v.Precision)
	fmt.Printf("recall:        %.4f\n", v.Recall)
	fmt.Printf("f-measure:     %.4f\n", v.FMeasure)
	fmt.Printf("rand:          %.4f\n", v.Rand)
	fmt.Printf("adjusted-rand: %.4f\n", v.AdjustedRand)
}

func readInts(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, corpuserr.New(corpuserr.IO, err)
	}
	defer f.Close()

	var out []int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		n, err := strconv.Atoi(line)
		if err != nil {
			return nil, corpuserr.New(corpuserr.InvalidInput, err)
		}
		out = append(out, n)
	}
	if err := sc.Err(); err != nil {
		return nil, corpuserr.New(corpuserr.IO, err)
	}
	return out, nil
}
