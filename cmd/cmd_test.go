package cmd

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Altius/stampipes/programs/sciatac_demux/config"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/report"
)

var whitelist = []string{"AAAAAAAAAA", "AAAAAAAAAC", "AAAAAAAAAG", "AAAAAAAAAT"}

const manifest = `{"samples": [
  {"sample_id": "s1", "tagmentation_i7": [1, 2, 3, 4], "pcr_i7": [1], "pcr_i5": [1], "tagmentation_i5": [1, 2]},
  {"sample_id": "s2", "tagmentation_i7": [1, 2, 3, 4], "pcr_i7": [2], "pcr_i5": [1], "tagmentation_i5": [1, 2]}
]}`

func writeInputs(t *testing.T, dir string) (profile, samples string) {
	list := "[" + strings.Join(whitelist, ", ") + "]"
	profile = filepath.Join(dir, "profile.yaml")
	require.NoError(t, ioutil.WriteFile(profile, []byte(
		"name: test\ntagmentation_i7: "+list+"\npcr_i7: "+list+"\npcr_i5: "+list+"\ntagmentation_i5: "+list+"\n"), 0600))
	samples = filepath.Join(dir, "samples.json")
	require.NoError(t, ioutil.WriteFile(samples, []byte(manifest), 0600))
	return profile, samples
}

func TestWriteIndexTable(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	profile, samples := writeInputs(t, dir)
	p, table, err := loadTable(&config.Config{Profile: profile, Manifest: samples, CollisionPolicy: config.PolicyLastWins})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeIndexTable(&buf, p, table))
	assert.Equal(t,
		"sample\tbarcodes\tpcr_i7\ttagmentation_i7\ttagmentation_i5\tpcr_i5\n"+
			"s1\tAAAAAAAAAA_*_*_*\t1\t*\t*\t*\n"+
			"s2\tAAAAAAAAAC_*_*_*\t2\t*\t*\t*\n",
		buf.String())

	_, _, err = loadTable(&config.Config{Profile: profile, Manifest: samples, CollisionPolicy: "first-wins"})
	assert.True(t, config.IsConfig(err))
}

func TestDemuxCommand(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	profile, samples := writeInputs(t, dir)
	name := "NB501:7:HXXXX:1:11101:1000:2000 1:N:0:AAAAAAAAAG" + whitelist[1] + "+" + whitelist[0] + whitelist[1]
	r1 := filepath.Join(dir, "Undetermined_S0_L002_R1_001.fastq")
	r2 := filepath.Join(dir, "Undetermined_S0_L002_R2_001.fastq")
	require.NoError(t, ioutil.WriteFile(r1, []byte("@"+name+"\nACGT\n+\nIIII\n"), 0600))
	require.NoError(t, ioutil.WriteFile(r2, []byte("@"+name+"\nTTGG\n+\nIIII\n"), 0600))
	out := filepath.Join(dir, "out")

	rootCmd.SetArgs([]string{"demux", "--r1", r1, "--r2", r2, "--manifest", samples, "--profile", profile,
		"--out-dir", out, "--run-name", "RUN7", "--compress=false", "--threads", "2"})
	require.NoError(t, rootCmd.Execute())

	display := "AAAAAAAAAG_AAAAAAAAAC_" + whitelist[1] + whitelist[0]
	got, err := ioutil.ReadFile(filepath.Join(out, "s2-RUN7_L002_R2.fastq"))
	require.NoError(t, err)
	assert.Equal(t, "@"+display+":1\nTTGG\n+\nIIII\n", string(got))

	sum, err := report.ReadSummary(filepath.Join(out, "RUN7_L002.stats.json"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.TotalInputReads)
	assert.Equal(t, map[string]int64{"s1": 0, "s2": 1}, sum.SampleReads)
}
