// Package config holds the run settings of a demultiplexing run. Settings
// come from command line flags and an optional config file, both through
// Viper (see: /cmd).
package config

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// ErrConfig is the cause of every configuration error. Configuration errors
// are reported before any read is processed.
var ErrConfig = errors.New("configuration error")

// Errorf returns a configuration error with the given context.
func Errorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfig, format, args...)
}

// IsConfig reports whether err was caused by a configuration error.
func IsConfig(err error) bool {
	return errors.Cause(err) == ErrConfig
}

// Collision policies for manifests where two samples claim the same
// barcode combination.
const (
	PolicyLastWins   = "last-wins"
	PolicyReject     = "reject"
	PolicyUnassigned = "unassigned"
)

// MaxMismatches bounds max-mismatches; correction tables grow
// combinatorially with the distance.
const MaxMismatches = 3

// Config is the settings of one demux run.
type Config struct {
	// paths to the paired, bcl2fastq named inputs
	R1 string `mapstructure:"r1"`
	R2 string `mapstructure:"r2"`

	// path to the normalized sample manifest (JSON)
	Manifest string `mapstructure:"manifest"`

	// path to the chemistry profile with the four whitelists
	Profile string `mapstructure:"profile"`

	OutDir  string `mapstructure:"out-dir"`
	RunName string `mapstructure:"run-name"`
	// lane name used in output file names, derived from R1 when empty
	Lane string `mapstructure:"lane"`

	TwoLevel bool `mapstructure:"two-level-indexed-tn5"`
	Wells384 bool `mapstructure:"wells-384"`
	// the instrument reads i5 reverse complemented (NextSeq, HiSeq 4000)
	P5RC bool `mapstructure:"p5-rc"`
	// label output reads with well ids instead of barcode sequences
	WellIDs bool `mapstructure:"well-ids"`
	// explicit layout recipe, 0 picks one from the chemistry flags
	Recipe int `mapstructure:"recipe"`
	// treat every channel as active
	NoMask          bool   `mapstructure:"no-mask"`
	CollisionPolicy string `mapstructure:"collision-policy"`

	MaxMismatches int  `mapstructure:"max-mismatches"`
	AllowN        bool `mapstructure:"allow-n"`

	Threads   int `mapstructure:"threads"`
	ChunkSize int `mapstructure:"chunk-size"`

	// gzip the per-sample outputs once they are complete
	Compress bool `mapstructure:"compress"`
	// fail the run when fewer reads than this carry four valid barcodes
	MinValidFraction float64 `mapstructure:"min-valid-fraction"`
}

// SetDefaults registers the default value of every setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("out-dir", ".")
	v.SetDefault("run-name", "RUN001")
	v.SetDefault("collision-policy", PolicyLastWins)
	v.SetDefault("max-mismatches", 2)
	v.SetDefault("allow-n", true)
	v.SetDefault("threads", 1)
	v.SetDefault("chunk-size", 10000)
	v.SetDefault("compress", true)
	v.SetDefault("min-valid-fraction", 0.05)
}

// New returns the Config held by v, with the lane filled in from the R1
// file name when it was not set.
func New(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "unable to decode settings")
	}
	if c.Lane == "" && c.R1 != "" {
		c.Lane = LaneFromPath(c.R1)
	}
	return &c, nil
}

// Validate checks the settings that can be checked without reading any
// input.
func (c *Config) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"r1", c.R1}, {"r2", c.R2}, {"manifest", c.Manifest}, {"profile", c.Profile},
	} {
		if f.value == "" {
			return Errorf("missing required setting %s", f.name)
		}
	}
	if c.TwoLevel && c.Wells384 {
		return Errorf("two-level indexed Tn5 has no 384 well barcode set")
	}
	if c.Recipe < 0 {
		return Errorf("invalid layout recipe %d", c.Recipe)
	}
	switch c.CollisionPolicy {
	case PolicyLastWins, PolicyReject, PolicyUnassigned:
	default:
		return Errorf("unknown collision policy %q", c.CollisionPolicy)
	}
	if c.MaxMismatches < 0 || c.MaxMismatches > MaxMismatches {
		return Errorf("max-mismatches must be between 0 and %d, got %d", MaxMismatches, c.MaxMismatches)
	}
	if c.Threads < 1 {
		return Errorf("threads must be at least 1, got %d", c.Threads)
	}
	if c.ChunkSize < 1 {
		return Errorf("chunk-size must be at least 1, got %d", c.ChunkSize)
	}
	if c.MinValidFraction < 0 || c.MinValidFraction > 1 {
		return Errorf("min-valid-fraction must be within [0, 1], got %g", c.MinValidFraction)
	}
	if c.RunName == "" || strings.ContainsRune(c.RunName, filepath.Separator) {
		return Errorf("invalid run name %q", c.RunName)
	}
	return nil
}

var laneRE = regexp.MustCompile(`_(L\d+)_`)

// LaneFromPath derives the lane name from a bcl2fastq file name, such as
// L001 for Undetermined_S0_L001_R1_001.fastq.gz. Names without a lane
// field yield the base name up to the first dot.
func LaneFromPath(path string) string {
	base := filepath.Base(path)
	if m := laneRE.FindStringSubmatch(base); m != nil {
		return m[1]
	}
	if i := strings.IndexByte(base, '.'); i > 0 {
		return base[:i]
	}
	return base
}
