// Package runstate implements incremental state (IS): the run counter
// and accumulated prototype/reject feature arrays carried across
// invocations of the analysis pipeline (spec.md §3, §4.8). Grounded on
// original_source/src/state.h's struct shape (state.c's own body is a
// near-stub in the retrieved source) and on malheur.c's call sites for
// the reset ("-t") flag.
package runstate

import (
	"fmt"
	"io"

	"behavior-corpus/internal/corpuserr"
	"behavior-corpus/internal/farray"
	"behavior-corpus/internal/persist"
)

// State is the data carried between runs: the run counter and the
// prototypes/rejects accumulated by every run so far. Prototypes is the
// running prototype set; Rejected accumulates inputs CL/PR rejected,
// kept separately so a later run can re-attempt them without re-reading
// the original corpus.
type State struct {
	Run        int
	Prototypes *farray.FA
	Rejected   *farray.FA
}

// Init returns an empty state tagged with src, ready for the first run.
func Init(src string) *State {
	return &State{
		Run:        0,
		Prototypes: farray.New(src),
		Rejected:   farray.New(src),
	}
}

// NextRun returns state.run + 1, the run id a new clustering/classify
// pass should use so cluster ids stay globally unique across
// incremental invocations (spec.md §4.8).
func (s *State) NextRun() int {
	return s.Run + 1
}

// Reset zeroes the run counter and discards accumulated
// prototypes/rejects, mirroring the reference CLI's "-t" flag
// (malheur.c's parse_options / main call it before the first pass of a
// fresh analysis).
func (s *State) Reset() {
	s.Run = 0
	s.Prototypes = farray.New(s.Prototypes.Src)
	s.Rejected = farray.New(s.Rejected.Src)
}

// Save writes the persisted state format: a one-line header followed by
// the prototypes FA and the rejected FA, each in farray's own format
// (internal/farray.Save), all gzip-framed through a single
// internal/persist.Writer.
func (s *State) Save(w io.Writer) error {
	out := persist.NewWriter(w)
	if err := out.Linef("incremental state: run=%d", s.Run); err != nil {
		return err
	}
	if err := farray.WriteTo(out, s.Prototypes); err != nil {
		return err
	}
	if err := farray.WriteTo(out, s.Rejected); err != nil {
		return err
	}
	return out.Close()
}

// Load restores a state previously written by Save.
func Load(r io.Reader) (*State, error) {
	in, err := persist.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	header, ok := in.Line()
	if !ok {
		return nil, corpuserr.Newf(corpuserr.InvalidInput, "incremental state: empty stream")
	}
	var run int
	if _, err := fmt.Sscanf(header, "incremental state: run=%d", &run); err != nil {
		return nil, corpuserr.Newf(corpuserr.InvalidInput, "incremental state: malformed header %q", header)
	}

	protos, err := farray.ReadFrom(in)
	if err != nil {
		return nil, err
	}
	rejected, err := farray.ReadFrom(in)
	if err != nil {
		return nil, err
	}
	if err := in.Err(); err != nil {
		return nil, err
	}

	return &State{Run: run, Prototypes: protos, Rejected: rejected}, nil
}
