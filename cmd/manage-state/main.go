// manage-state inspects and mutates the incremental-state file carried
// between analysis runs (IS), mirroring the reference CLI's "-t" reset
// flag (malheur.c's parse_options) plus a show/record pair for the
// SQLite run-history ledger.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"behavior-corpus/internal/corpuserr"
	"behavior-corpus/internal/runstate"
)

func main() {
	statePath := flag.String("state", "state.bin", "path to the persisted incremental state")
	ledgerPath := flag.String("ledger", "", "optional SQLite run-history ledger path")
	reset := flag.Bool("reset", false, "discard accumulated prototypes/rejects and zero the run counter")
	src := flag.String("src", "corpus", "source tag for a freshly initialized state")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	if flag.NArg() < 1 {
		logger.ErrorContext(ctx, "expected a subcommand: init, show, or reset")
		os.Exit(1)
	}

	switch flag.Arg(0) {
	case "init":
		s := runstate.Init(*src)
		if err := saveState(*statePath, s); err != nil {
			logger.ErrorContext(ctx, "initializing state", slog.Any("error", err))
			os.Exit(1)
		}
		logger.InfoContext(ctx, "initialized state", slog.String("path", *statePath))

	case "show":
		s, err := loadState(*statePath)
		if err != nil {
			logger.ErrorContext(ctx, "loading state", slog.Any("error", err))
			os.Exit(1)
		}
		fmt.Printf("run:         %d\n", s.Run)
		fmt.Printf("next run:    %d\n", s.NextRun())
		fmt.Printf("prototypes:  %d\n", s.Prototypes.Len())
		fmt.Printf("rejected:    %d\n", s.Rejected.Len())

		if *ledgerPath != "" {
			l, err := runstate.OpenLedger(*ledgerPath)
			if err != nil {
				logger.ErrorContext(ctx, "opening ledger", slog.Any("error", err))
				os.Exit(1)
			}
			defer l.Close()
			if _, err := l.Record(s, time.Now()); err != nil {
				logger.ErrorContext(ctx, "recording ledger entry", slog.Any("error", err))
				os.Exit(1)
			}
			history, err := l.History()
			if err != nil {
				logger.ErrorContext(ctx, "reading ledger history", slog.Any("error", err))
				os.Exit(1)
			}
			fmt.Printf("history entries: %d\n", len(history))
		}

	case "reset":
		s, err := loadState(*statePath)
		if err != nil {
			logger.ErrorContext(ctx, "loading state", slog.Any("error", err))
			os.Exit(1)
		}
		if !*reset {
			logger.ErrorContext(ctx, "reset subcommand requires -reset")
			os.Exit(1)
		}
		s.Reset()
		if err := saveState(*statePath, s); err != nil {
			logger.ErrorContext(ctx, "saving reset state", slog.Any("error", err))
			os.Exit(1)
		}
		logger.InfoContext(ctx, "state reset", slog.String("path", *statePath))

	default:
		logger.ErrorContext(ctx, "unknown subcommand", slog.String("subcommand", flag.Arg(0)))
		os.Exit(1)
	}
}

func loadState(path string) (*runstate.State, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, corpuserr.New(corpuserr.IO, err)
	}
	defer f.Close()
	return runstate.Load(f)
}

func saveState(path string, s *runstate.State) error {
	f, err := os.Create(path)
	if err != nil {
		return corpuserr.New(corpuserr.IO, err)
	}
	defer f.Close()
	return s.Save(f)
}
