// Package config loads the configuration snapshot consumed by the
// analytical core (spec.md §6). The snapshot is read-only once built;
// readers need no synchronization.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"behavior-corpus/internal/corpuserr"
)

// Embedding selects the feature-vector weight transformation.
type Embedding string

const (
	EmbeddingBin Embedding = "bin"
	EmbeddingL1  Embedding = "l1"
	EmbeddingL2  Embedding = "l2"
)

// LinkMode selects the clustering linkage rule.
type LinkMode string

const (
	LinkSingle   LinkMode = "single"
	LinkAverage  LinkMode = "average"
	LinkComplete LinkMode = "complete"
)

// Snapshot mirrors the configuration table in spec.md §6. input.format is
// retained for collaborator use (the core itself ignores it).
type Snapshot struct {
	InputFormat string `yaml:"input_format"`

	FeaturesNgramLen    int       `yaml:"features_ngram_len"`
	FeaturesNgramDelim  string    `yaml:"features_ngram_delim"`
	FeaturesEmbedding   Embedding `yaml:"features_embedding"`
	FeaturesLookupTable bool      `yaml:"features_lookup_table"`

	PrototypesMaxDist float64 `yaml:"prototypes_max_dist"`
	PrototypesMaxNum  int     `yaml:"prototypes_max_num"`

	ClusterMinDist   float64  `yaml:"cluster_min_dist"`
	ClusterRejectNum int      `yaml:"cluster_reject_num"`
	ClusterLinkMode  LinkMode `yaml:"cluster_link_mode"`

	ClassifyMaxDist float64 `yaml:"classify_max_dist"`
}

// defaults mirrors the conservative defaults chosen in SPEC_FULL.md §6;
// thresholds with no sane default are left at their zero value and
// Validate rejects them.
func defaults() Snapshot {
	return Snapshot{
		InputFormat:         "raw",
		FeaturesNgramLen:    2,
		FeaturesNgramDelim:  "",
		FeaturesEmbedding:   EmbeddingL2,
		FeaturesLookupTable: true,
		PrototypesMaxNum:    0,
		ClusterRejectNum:    1,
		ClusterLinkMode:     LinkAverage,
	}
}

// Load reads a YAML configuration file at path, applies defaults for
// unset fields, overlays the MALHEUR_FEATURES_NGRAM_LEN,
// MALHEUR_FEATURES_NGRAM_DELIM, MALHEUR_FEATURES_EMBEDDING,
// MALHEUR_PROTOTYPES_MAX_DIST, MALHEUR_CLUSTER_MIN_DIST and
// MALHEUR_CLASSIFY_MAX_DIST environment variables (after loading envFile,
// if non-empty, via godotenv), and validates the result. No other field
// is read from the environment.
func Load(path string, envFile string) (Snapshot, error) {
	snap := defaults()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, corpuserr.New(corpuserr.InvalidConfig, err)
	}

	var overlay Snapshot
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return Snapshot{}, corpuserr.New(corpuserr.InvalidConfig, err)
	}
	mergeNonZero(&snap, overlay)

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Snapshot{}, corpuserr.New(corpuserr.InvalidConfig, err)
		}
	}
	applyEnvOverrides(&snap)

	if err := snap.Validate(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// mergeNonZero copies every non-zero-valued field of overlay into snap,
// leaving defaults in place for fields the YAML document omitted.
func mergeNonZero(snap *Snapshot, overlay Snapshot) {
	if overlay.InputFormat != "" {
		snap.InputFormat = overlay.InputFormat
	}
	if overlay.FeaturesNgramLen != 0 {
		snap.FeaturesNgramLen = overlay.FeaturesNgramLen
	}
	if overlay.FeaturesNgramDelim != "" {
		snap.FeaturesNgramDelim = overlay.FeaturesNgramDelim
	}
	if overlay.FeaturesEmbedding != "" {
		snap.FeaturesEmbedding = overlay.FeaturesEmbedding
	}
	snap.FeaturesLookupTable = overlay.FeaturesLookupTable || snap.FeaturesLookupTable
	if overlay.PrototypesMaxDist != 0 {
		snap.PrototypesMaxDist = overlay.PrototypesMaxDist
	}
	if overlay.PrototypesMaxNum != 0 {
		snap.PrototypesMaxNum = overlay.PrototypesMaxNum
	}
	if overlay.ClusterMinDist != 0 {
		snap.ClusterMinDist = overlay.ClusterMinDist
	}
	if overlay.ClusterRejectNum != 0 {
		snap.ClusterRejectNum = overlay.ClusterRejectNum
	}
	if overlay.ClusterLinkMode != "" {
		snap.ClusterLinkMode = overlay.ClusterLinkMode
	}
	if overlay.ClassifyMaxDist != 0 {
		snap.ClassifyMaxDist = overlay.ClassifyMaxDist
	}
}

func applyEnvOverrides(snap *Snapshot) {
	if v, ok := os.LookupEnv("MALHEUR_FEATURES_NGRAM_LEN"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			snap.FeaturesNgramLen = n
		}
	}
	if v, ok := os.LookupEnv("MALHEUR_FEATURES_NGRAM_DELIM"); ok {
		snap.FeaturesNgramDelim = v
	}
	if v, ok := os.LookupEnv("MALHEUR_FEATURES_EMBEDDING"); ok {
		snap.FeaturesEmbedding = Embedding(strings.ToLower(v))
	}
	if v, ok := os.LookupEnv("MALHEUR_PROTOTYPES_MAX_DIST"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			snap.PrototypesMaxDist = f
		}
	}
	if v, ok := os.LookupEnv("MALHEUR_CLUSTER_MIN_DIST"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			snap.ClusterMinDist = f
		}
	}
	if v, ok := os.LookupEnv("MALHEUR_CLASSIFY_MAX_DIST"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			snap.ClassifyMaxDist = f
		}
	}
}

// Validate checks the snapshot against the invariants spec.md §6 implies:
// positive n-gram length, a recognized embedding and link mode, and a
// reject threshold of at least 1.
func (s Snapshot) Validate() error {
	if s.FeaturesNgramLen < 1 {
		return corpuserr.Newf(corpuserr.InvalidConfig, "features.ngram_len must be >= 1, got %d", s.FeaturesNgramLen)
	}
	switch s.FeaturesEmbedding {
	case EmbeddingBin, EmbeddingL1, EmbeddingL2:
	default:
		return corpuserr.Newf(corpuserr.InvalidConfig, "features.embedding must be bin, l1, or l2, got %q", s.FeaturesEmbedding)
	}
	switch s.ClusterLinkMode {
	case LinkSingle, LinkAverage, LinkComplete:
	default:
		return corpuserr.Newf(corpuserr.InvalidConfig, "cluster.link_mode must be single, average, or complete, got %q", s.ClusterLinkMode)
	}
	if s.ClusterRejectNum < 1 {
		return corpuserr.Newf(corpuserr.InvalidConfig, "cluster.reject_num must be >= 1, got %d", s.ClusterRejectNum)
	}
	if s.PrototypesMaxNum < 0 {
		return corpuserr.Newf(corpuserr.InvalidConfig, "prototypes.max_num must be >= 0, got %d", s.PrototypesMaxNum)
	}
	if s.PrototypesMaxDist <= 0 {
		return corpuserr.Newf(corpuserr.InvalidConfig, "prototypes.max_dist is required and must be > 0, got %v", s.PrototypesMaxDist)
	}
	if s.ClusterMinDist <= 0 {
		return corpuserr.Newf(corpuserr.InvalidConfig, "cluster.min_dist is required and must be > 0, got %v", s.ClusterMinDist)
	}
	if s.ClassifyMaxDist <= 0 {
		return corpuserr.Newf(corpuserr.InvalidConfig, "classify.max_dist is required and must be > 0, got %v", s.ClassifyMaxDist)
	}
	return nil
}
