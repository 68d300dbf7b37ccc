package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.Set("r1", "/data/Undetermined_S0_L002_R1_001.fastq.gz")
	v.Set("r2", "/data/Undetermined_S0_L002_R2_001.fastq.gz")
	v.Set("manifest", "manifest.json")
	v.Set("profile", "profile.yaml")
	return v
}

func TestNewDefaults(t *testing.T) {
	c, err := New(testViper())
	require.NoError(t, err)
	require.NoError(t, c.Validate())
	assert.Equal(t, "L002", c.Lane)
	assert.Equal(t, "RUN001", c.RunName)
	assert.Equal(t, PolicyLastWins, c.CollisionPolicy)
	assert.Equal(t, 2, c.MaxMismatches)
	assert.True(t, c.AllowN)
	assert.True(t, c.Compress)
	assert.Equal(t, 1, c.Threads)
	assert.Equal(t, 10000, c.ChunkSize)
	assert.Equal(t, 0.05, c.MinValidFraction)
	assert.Equal(t, 0, c.Recipe)
}

func TestNewFromFile(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(`
r1: a_R1.fastq
r2: a_R2.fastq
manifest: m.json
profile: p.yaml
lane: L007
two-level-indexed-tn5: true
p5-rc: true
recipe: 4
threads: 8
collision-policy: reject
`), 0600))

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	c, err := New(v)
	require.NoError(t, err)
	require.NoError(t, c.Validate())
	assert.Equal(t, "L007", c.Lane)
	assert.True(t, c.TwoLevel)
	assert.True(t, c.P5RC)
	assert.False(t, c.Wells384)
	assert.Equal(t, 4, c.Recipe)
	assert.Equal(t, 8, c.Threads)
	assert.Equal(t, PolicyReject, c.CollisionPolicy)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		key   string
		value interface{}
	}{
		{"r2", ""},
		{"manifest", ""},
		{"recipe", -2},
		{"collision-policy", "first-wins"},
		{"max-mismatches", -1},
		{"max-mismatches", 4},
		{"threads", 0},
		{"chunk-size", 0},
		{"min-valid-fraction", 1.5},
		{"run-name", "a/b"},
	}
	for _, test := range tests {
		v := testViper()
		v.Set(test.key, test.value)
		c, err := New(v)
		require.NoError(t, err)
		err = c.Validate()
		assert.True(t, IsConfig(err), "%s=%v: %v", test.key, test.value, err)
	}

	v := testViper()
	v.Set("two-level-indexed-tn5", true)
	v.Set("wells-384", true)
	c, err := New(v)
	require.NoError(t, err)
	assert.True(t, IsConfig(c.Validate()))
}

func TestIsConfig(t *testing.T) {
	assert.True(t, IsConfig(Errorf("bad %d", 1)))
	assert.True(t, IsConfig(errors.Wrap(Errorf("bad"), "outer")))
	assert.False(t, IsConfig(errors.New("other")))
	assert.False(t, IsConfig(nil))
	assert.Contains(t, Errorf("recipe %d", 9).Error(), "recipe 9")
}

func TestLaneFromPath(t *testing.T) {
	tests := []struct {
		path, want string
	}{
		{"/a/b/Undetermined_S0_L001_R1_001.fastq.gz", "L001"},
		{"Undetermined_S0_L004_R1_001.fastq", "L004"},
		{"reads_R1.fastq.gz", "reads_R1"},
		{"reads", "reads"},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, LaneFromPath(test.path), test.path)
	}
}
