// Package corpusio loads a directory of behavioral reports into a
// feature array, inferring each report's label from its immediate
// parent subdirectory (spec.md §3's "collector" non-goal, given a
// concrete home here per SPEC_FULL.md §1). Grounded on the teacher's
// cmd/build_from_folders/main.go (discoverSubdirectories/
// collectWAVFiles) and cmd/rebuild_prototypes/main.go (the flat,
// single-label variant), generalized from WAV files to plain report
// files and from log.Fatalf CLI texture to returned errors.
package corpusio

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"behavior-corpus/internal/corpuserr"
	"behavior-corpus/internal/farray"
	"behavior-corpus/internal/fhash"
	"behavior-corpus/internal/fvec"
	"behavior-corpus/internal/parallel"
)

// LoadDir walks dir one level deep: files directly under dir are loaded
// with label "", and files under an immediate subdirectory are labeled
// with that subdirectory's name, mirroring build_from_folders' layout
// (droneA-B/DroneA/sample1.wav -> label "DroneA"). Hidden entries
// (dotfiles, dot-directories) are skipped. Files are read and extracted
// in parallel across jobs (spec.md §5's "parallel over files" region,
// mirroring farray_extract_dir's critical-region pattern: every worker
// extracts independently and only the final FA.Append, a shared
// resource, runs sequentially), then appended in sorted path order so
// FA indices stay deterministic across runs regardless of extraction
// order. sink receives any EmptyFeatureVector warnings fvec.Extract
// raises; a nil sink discards them.
func LoadDir(dir string, cfg fvec.Config, table *fhash.Table, sink corpuserr.Sink) (*farray.FA, error) {
	fa := farray.New(dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, corpuserr.New(corpuserr.IO, err)
	}

	type job struct {
		path  string
		label string
	}
	var jobs []job
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		full := filepath.Join(dir, e.Name())
		if e.IsDir() {
			subFiles, err := os.ReadDir(full)
			if err != nil {
				return nil, corpuserr.New(corpuserr.IO, err)
			}
			for _, sf := range subFiles {
				if sf.IsDir() || strings.HasPrefix(sf.Name(), ".") {
					continue
				}
				jobs = append(jobs, job{path: filepath.Join(full, sf.Name()), label: e.Name()})
			}
			continue
		}
		jobs = append(jobs, job{path: full, label: ""})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].path < jobs[j].path })

	vecs := make([]*fvec.Vector, len(jobs))
	err = parallel.Range(len(jobs), func(i int) error {
		data, err := os.ReadFile(jobs[i].path)
		if err != nil {
			return corpuserr.New(corpuserr.IO, err)
		}
		v, err := fvec.Extract(data, jobs[i].path, cfg, table, sink)
		if err != nil {
			return err
		}
		vecs[i] = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, j := range jobs {
		if err := fa.Append(vecs[i], j.label); err != nil {
			return nil, err
		}
	}
	return fa, nil
}
