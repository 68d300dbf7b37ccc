package samplesheet

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Altius/stampipes/programs/sciatac_demux/config"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/chemistry"
)

var whitelists = [chemistry.NumChannels][]string{
	chemistry.TagI7: {"AAAA", "AAAC", "AAAG", "AAAT"},
	chemistry.PCRI7: {"CCCA", "CCCC", "CCCG", "CCCT"},
	chemistry.PCRI5: {"GGGA", "GGGC", "GGGG", "GGGT"},
	chemistry.TagI5: {"TTTA", "TTTC", "TTTG", "TTTT"},
}

func sample(id string, tagI7, pcrI7, pcrI5, tagI5 []int) Sample {
	s := Sample{ID: id}
	s.Indices[chemistry.TagI7] = tagI7
	s.Indices[chemistry.PCRI7] = pcrI7
	s.Indices[chemistry.PCRI5] = pcrI5
	s.Indices[chemistry.TagI5] = tagI5
	return s
}

func scenarioB() []Sample {
	return []Sample{
		sample("sample1", []int{0, 1, 2, 3}, []int{0}, []int{0}, []int{0, 1}),
		sample("sample2", []int{0, 1, 2, 3}, []int{1}, []int{0}, []int{1, 0}),
	}
}

func TestScenarioB(t *testing.T) {
	table, err := Compile(scenarioB(), whitelists, Options{})
	require.NoError(t, err)
	assert.Equal(t, [4]bool{false, true, false, false}, table.Mask())
	assert.Equal(t, 1, table.Arity())
	assert.Equal(t, 2, table.Len())

	// The tagmentation and PCR i5 barcodes are not checked at all.
	got, ok, amb := table.Lookup([4]string{"NNNN", "CCCC", "", "XXXX"})
	assert.True(t, ok)
	assert.False(t, amb)
	assert.Equal(t, "sample2", got)

	i, ok, _ := table.LookupIndex([4]int{-1, 0, 99, 3})
	assert.True(t, ok)
	assert.Equal(t, 0, i)

	_, ok, amb = table.Lookup([4]string{"AAAA", "CCCG", "GGGA", "TTTA"})
	assert.False(t, ok)
	assert.False(t, amb)
}

func TestArity(t *testing.T) {
	samples := []Sample{
		sample("a", []int{0}, []int{0}, []int{0}, []int{0}),
		sample("b", []int{1}, []int{1}, []int{1}, []int{1}),
	}
	table, err := Compile(samples, whitelists, Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, table.Arity())
	got, ok, _ := table.Lookup([4]string{"AAAC", "CCCC", "GGGC", "TTTC"})
	assert.True(t, ok)
	assert.Equal(t, "b", got)
	_, ok, _ = table.Lookup([4]string{"AAAC", "CCCC", "GGGC", "TTTA"})
	assert.False(t, ok)

	table, err = Compile(scenarioB(), whitelists, Options{NoMask: true})
	require.NoError(t, err)
	assert.Equal(t, 4, table.Arity())
	// 4 tagmentation i7 x 1 x 1 x 2 tagmentation i5 per sample.
	assert.Equal(t, 16, table.Len())
	_, ok, _ = table.Lookup([4]string{"NNNN", "CCCC", "GGGA", "TTTA"})
	assert.False(t, ok)
	got, ok, _ = table.Lookup([4]string{"AAAT", "CCCC", "GGGA", "TTTC"})
	assert.True(t, ok)
	assert.Equal(t, "sample2", got)
}

func TestSingleSampleAllInactive(t *testing.T) {
	table, err := Compile([]Sample{sample("only", []int{0}, []int{1}, []int{2}, []int{3})}, whitelists, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, table.Arity())
	got, ok, _ := table.Lookup([4]string{"", "", "", ""})
	assert.True(t, ok)
	assert.Equal(t, "only", got)
}

func collidingSamples() []Sample {
	return []Sample{
		sample("first", []int{0}, []int{0, 1}, []int{0}, []int{0}),
		sample("second", []int{0}, []int{1, 2}, []int{0}, []int{0}),
	}
}

func TestCollisionPolicies(t *testing.T) {
	seqs := [4]string{"AAAA", "CCCC", "GGGA", "TTTA"}

	table, err := Compile(collidingSamples(), whitelists, Options{Policy: LastWins})
	require.NoError(t, err)
	got, ok, _ := table.Lookup(seqs)
	assert.True(t, ok)
	assert.Equal(t, "second", got)

	table, err = Compile(collidingSamples(), whitelists, Options{Policy: Unassigned})
	require.NoError(t, err)
	_, ok, amb := table.Lookup(seqs)
	assert.False(t, ok)
	assert.True(t, amb)
	got, ok, _ = table.Lookup([4]string{"AAAA", "CCCA", "GGGA", "TTTA"})
	assert.True(t, ok)
	assert.Equal(t, "first", got)
	entries := table.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "first", entries[0].Sample)
	assert.Equal(t, "second", entries[1].Sample)
	assert.True(t, entries[2].Ambiguous)
	assert.Equal(t, Key{-1, 1, -1, -1}, entries[2].Key)

	_, err = Compile(collidingSamples(), whitelists, Options{Policy: Reject})
	assert.True(t, config.IsConfig(err), "%v", err)
}

func TestParsePolicy(t *testing.T) {
	for _, p := range []Policy{LastWins, Reject, Unassigned} {
		got, err := ParsePolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParsePolicy("first-wins")
	assert.True(t, config.IsConfig(err))
}

func TestPairs(t *testing.T) {
	table, err := Compile(scenarioB(), whitelists, Options{})
	require.NoError(t, err)
	assert.Equal(t, []Pair{{0, 0}, {0, 1}, {1, 0}, {1, 1}, {2, 0}, {2, 1}, {3, 0}, {3, 1}}, table.TagPairs())
	assert.Equal(t, []Pair{{0, 0}, {1, 0}}, table.PCRPairs())
	assert.True(t, table.HasTagPair(Pair{3, 1}))
	assert.False(t, table.HasTagPair(Pair{3, 2}))
	assert.True(t, table.HasPCRPair(Pair{1, 0}))
	assert.False(t, table.HasPCRPair(Pair{0, 1}))
}

func TestCompileInvalid(t *testing.T) {
	_, err := Compile(nil, whitelists, Options{})
	assert.True(t, config.IsConfig(err))

	_, err = Compile([]Sample{sample("a", nil, []int{0}, []int{0}, []int{0})}, whitelists, Options{})
	assert.True(t, config.IsConfig(err))

	_, err = Compile([]Sample{sample("a", []int{4}, []int{0}, []int{0}, []int{0})}, whitelists, Options{})
	assert.True(t, config.IsConfig(err))
}

func TestParseManifest(t *testing.T) {
	samples, err := ParseManifest([]byte(`{"samples": [
		{"sample_id": "s1", "tagmentation_i7": [1, 2], "pcr_i7": [1], "pcr_i5": [1], "tagmentation_i5": [3]},
		{"sample_id": " s2 ", "tagmentation_i7": [4], "pcr_i7": [2], "pcr_i5": [1], "tagmentation_i5": [3]}
	]}`))
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, sample("s1", []int{0, 1}, []int{0}, []int{0}, []int{2}), samples[0])
	assert.Equal(t, "s2", samples[1].ID)
	assert.Equal(t, []int{3}, samples[1].Indices[chemistry.TagI7])

	for _, bad := range []string{
		`{"samples": [{"sample_id": "", "pcr_i7": [1]}]}`,
		`{"samples": [{"sample_id": "a/b", "pcr_i7": [1]}]}`,
		`{"samples": [{"sample_id": "a", "pcr_i7": [0]}]}`,
		`{"samples": [{"sample_id": "a"}, {"sample_id": "a"}]}`,
		`{"samples": `,
	} {
		_, err := ParseManifest([]byte(bad))
		assert.True(t, config.IsConfig(err), bad)
	}
}

func TestLoadManifest(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, ioutil.WriteFile(path, []byte(`{"samples": [
		{"sample_id": "s1", "tagmentation_i7": [1], "pcr_i7": [1], "pcr_i5": [1], "tagmentation_i5": [1]}
	]}`), 0600))
	samples, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Len(t, samples, 1)

	_, err = LoadManifest(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
	assert.False(t, config.IsConfig(err))
}
