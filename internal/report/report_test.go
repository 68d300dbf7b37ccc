package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Altius/stampipes/programs/sciatac_demux/internal/chemistry"
)

func readLines(t *testing.T, path string) []string {
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestSummaryRoundTrip(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(dir, "RUN001_L001.stats.json")
	s := Summary{
		TotalInputReads: 100,
		AllBarcodes:     3,
		NotSpecified:    1,
		SampleReads:     map[string]int64{"a": 2, "b": 0},
	}
	require.NoError(t, WriteSummary(path, s))
	got, err := ReadSummary(path)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, key := range []string{
		"total_input_reads", "tagmentation_i7", "tagmentation_i5", "tagmentation",
		"tagmentation_match", "pcr_i7", "pcr_i5", "pcr", "pcr_match", "all_barcodes",
		"total_not_specified_in_samplesheet", "total_ambiguous_in_samplesheet",
	} {
		assert.Contains(t, string(data), `"`+key+`": `)
	}
}

func TestWriteIndexCounts(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(dir, "index_counts.tsv")
	c := &IndexCounts{Sizes: [chemistry.NumChannels]int{384, 96, 96, 384}}
	c.Counts[chemistry.TagI7][0] = 5
	c.Counts[chemistry.PCRI5][95] = 7
	c.Counts[chemistry.TagI5][383] = 9
	require.NoError(t, WriteIndexCounts(path, c))

	lines := readLines(t, path)
	require.Len(t, lines, 385)
	assert.Equal(t, "index\twell_row_major\twell_col_major\ttagmentation_i7\tpcr_i7\tpcr_i5\ttagmentation_i5\tvalid", lines[0])
	assert.Equal(t, "0\tP1-A01\tP1-A01\t5\t0\t0\t0\t1", lines[1])
	assert.Equal(t, "1\tP1-A02\tP1-B01\t0\t0\t0\t0\t1", lines[2])
	assert.Equal(t, "95\tP1-H12\tP1-H12\t0\t0\t7\t0\t1", lines[96])
	assert.Equal(t, "96\tP2-A01\tP2-A01\t0\tNA\tNA\t0\t0", lines[97])
	assert.Equal(t, "383\tP4-H12\tP4-H12\t0\tNA\tNA\t9\t0", lines[384])
}

func TestWritePairCounts(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(dir, "pairs.tsv")

	a, err := NewPairCount(0, 1, 12)
	require.NoError(t, err)
	assert.Equal(t, PairCount{1, 2, "P1-A01", "P1-B01", 12}, a)
	b, err := NewPairCount(13, 95, 0)
	require.NoError(t, err)
	_, err = NewPairCount(384, 0, 0)
	assert.Error(t, err)

	require.NoError(t, WritePairCounts(path, []PairCount{a, b}))
	lines := readLines(t, path)
	require.Len(t, lines, 3)
	for _, col := range []string{"i7_index", "i5_index", "i7_well", "i5_well", "count"} {
		assert.Contains(t, lines[0], col)
	}
	assert.Equal(t, "1\t2\tP1-A01\tP1-B01\t12", lines[1])
	assert.Equal(t, "14\t96\tP1-B02\tP1-H12\t0", lines[2])
}

func TestWriteBarcodeCounts(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(dir, "barcodes.tsv")
	require.NoError(t, WriteBarcodeCounts(path, "L001", map[string]int64{
		"A01_B01_C01": 2,
		"A02_B01_C01": 5,
		"A00_B01_C01": 2,
	}))
	assert.Equal(t, []string{
		"lane\tbarcodes\tcount",
		"L001\tA02_B01_C01\t5",
		"L001\tA00_B01_C01\t2",
		"L001\tA01_B01_C01\t2",
	}, readLines(t, path))
}

func TestCreateFails(t *testing.T) {
	err := WriteSummary(filepath.Join("/nonexistent", "dir", "stats.json"), Summary{})
	assert.Error(t, err)
}
