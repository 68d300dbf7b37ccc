// Package report writes the end of run records of a demultiplexing run:
// the statistics summary and the per-well, pair and barcode count tables.
package report

import (
	"encoding/json"
	"io"
	"os"
	"sort"

	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"

	"github.com/Altius/stampipes/programs/sciatac_demux/internal/chemistry"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/well"
)

// Summary is the statistics record of a run. All values are read counts.
type Summary struct {
	TotalInputReads     int64 `json:"total_input_reads"`
	TagmentationI7      int64 `json:"tagmentation_i7"`
	TagmentationI5      int64 `json:"tagmentation_i5"`
	Tagmentation        int64 `json:"tagmentation"`
	TagmentationMatch   int64 `json:"tagmentation_match"`
	PCRI7               int64 `json:"pcr_i7"`
	PCRI5               int64 `json:"pcr_i5"`
	PCR                 int64 `json:"pcr"`
	PCRMatch            int64 `json:"pcr_match"`
	AllBarcodes         int64 `json:"all_barcodes"`
	NotSpecified        int64 `json:"total_not_specified_in_samplesheet"`
	AmbiguousInManifest int64 `json:"total_ambiguous_in_samplesheet"`
	// SampleReads is the number of read pairs written for each sample.
	SampleReads map[string]int64 `json:"sample_reads"`
}

// create runs write against a new file at path, closing it afterwards.
func create(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating report")
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "closing %s", path)
		}
	}()
	if err := write(f); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// WriteSummary writes s as indented JSON.
func WriteSummary(path string, s Summary) error {
	return create(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "    ")
		return enc.Encode(s)
	})
}

// ReadSummary reads a summary written by WriteSummary.
func ReadSummary(path string) (Summary, error) {
	var s Summary
	data, err := os.ReadFile(path)
	if err != nil {
		return s, errors.Wrap(err, "reading summary")
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, errors.Wrapf(err, "decoding summary %s", path)
	}
	return s, nil
}

// IndexCounts holds the per-slot counts of every channel, indexed by
// chemistry.Channel, and the whitelist size of each channel.
type IndexCounts struct {
	Counts [chemistry.NumChannels][well.MaxSlots]int64
	Sizes  [chemistry.NumChannels]int
}

// WriteIndexCounts writes one row per 384 slot with the plate well labels
// of the slot and the count of each channel. Counts of slots outside a
// channel's whitelist are NA; valid is 1 when the slot is inside every
// channel's whitelist.
func WriteIndexCounts(path string, c *IndexCounts) error {
	return create(path, func(w io.Writer) error {
		out := tsv.NewWriter(w)
		out.WriteString("index")
		out.WriteString("well_row_major")
		out.WriteString("well_col_major")
		for _, ch := range chemistry.Channels {
			out.WriteString(ch.String())
		}
		out.WriteString("valid")
		if err := out.EndLine(); err != nil {
			return err
		}
		for i := 0; i < well.MaxSlots; i++ {
			rowMajor, err := well.PlateID(i, well.RowMajor, true)
			if err != nil {
				return err
			}
			colMajor, err := well.PlateID(i, well.ColumnMajor, true)
			if err != nil {
				return err
			}
			out.WriteUint32(uint32(i))
			out.WriteString(rowMajor)
			out.WriteString(colMajor)
			valid := 1
			for _, ch := range chemistry.Channels {
				if i >= c.Sizes[ch] {
					out.WriteString("NA")
					valid = 0
					continue
				}
				out.WriteInt64(c.Counts[ch][i])
			}
			out.WriteUint32(uint32(valid))
			if err := out.EndLine(); err != nil {
				return err
			}
		}
		return out.Flush()
	})
}

// PairCount is one row of a pair count table. Indices are 1-based.
type PairCount struct {
	I7Index int64  `tsv:"i7_index"`
	I5Index int64  `tsv:"i5_index"`
	I7Well  string `tsv:"i7_well"`
	I5Well  string `tsv:"i5_well"`
	Count   int64  `tsv:"count"`
}

// NewPairCount fills in the 1-based indices and plate wells of a 0-based
// (i7, i5) pair. The i7 well is row-major and the i5 well column-major,
// following how the plates are laid out.
func NewPairCount(i7, i5 int, count int64) (PairCount, error) {
	i7Well, err := well.PlateID(i7, well.RowMajor, true)
	if err != nil {
		return PairCount{}, err
	}
	i5Well, err := well.PlateID(i5, well.ColumnMajor, true)
	if err != nil {
		return PairCount{}, err
	}
	return PairCount{I7Index: int64(i7) + 1, I5Index: int64(i5) + 1, I7Well: i7Well, I5Well: i5Well, Count: count}, nil
}

// WritePairCounts writes rows as a TSV with a header line.
func WritePairCounts(path string, rows []PairCount) error {
	return create(path, func(w io.Writer) error {
		out := tsv.NewRowWriter(w)
		for i := range rows {
			if err := out.Write(&rows[i]); err != nil {
				return err
			}
		}
		return out.Flush()
	})
}

// WriteBarcodeCounts writes the number of reads seen for each display
// barcode string, most frequent first.
func WriteBarcodeCounts(path, lane string, counts map[string]int64) error {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return create(path, func(w io.Writer) error {
		out := tsv.NewWriter(w)
		out.WriteString("lane\tbarcodes\tcount")
		if err := out.EndLine(); err != nil {
			return err
		}
		for _, k := range keys {
			out.WriteString(lane)
			out.WriteString(k)
			out.WriteInt64(counts[k])
			if err := out.EndLine(); err != nil {
				return err
			}
		}
		return out.Flush()
	})
}
