package demux

import (
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/chemistry"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/report"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/samplesheet"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/well"
)

// RunStatistics are the counters of a scan. Each worker owns its own copy;
// copies are combined with Merge.
type RunStatistics struct {
	TotalInput int64
	// Valid counts reads whose channel barcode corrected, indexed by
	// chemistry.Channel.
	Valid             [chemistry.NumChannels]int64
	Tagmentation      int64
	TagmentationMatch int64
	PCR               int64
	PCRMatch          int64
	AllBarcodes       int64
	NotSpecified      int64
	Ambiguous         int64
	// SampleReads is indexed by manifest sample position.
	SampleReads []int64
	// IndexCounts counts corrected barcodes per whitelist slot.
	IndexCounts   [chemistry.NumChannels][well.MaxSlots]int64
	TagPairCounts map[samplesheet.Pair]int64
	PCRPairCounts map[samplesheet.Pair]int64
	BarcodeCounts map[string]int64
}

// NewRunStatistics returns zeroed statistics for nSamples samples.
func NewRunStatistics(nSamples int) *RunStatistics {
	return &RunStatistics{
		SampleReads:   make([]int64, nSamples),
		TagPairCounts: make(map[samplesheet.Pair]int64),
		PCRPairCounts: make(map[samplesheet.Pair]int64),
		BarcodeCounts: make(map[string]int64),
	}
}

// Merge adds the counts of o to s.
func (s *RunStatistics) Merge(o *RunStatistics) {
	s.TotalInput += o.TotalInput
	for ch := range s.Valid {
		s.Valid[ch] += o.Valid[ch]
		for i := range s.IndexCounts[ch] {
			s.IndexCounts[ch][i] += o.IndexCounts[ch][i]
		}
	}
	s.Tagmentation += o.Tagmentation
	s.TagmentationMatch += o.TagmentationMatch
	s.PCR += o.PCR
	s.PCRMatch += o.PCRMatch
	s.AllBarcodes += o.AllBarcodes
	s.NotSpecified += o.NotSpecified
	s.Ambiguous += o.Ambiguous
	for i, n := range o.SampleReads {
		s.SampleReads[i] += n
	}
	for p, n := range o.TagPairCounts {
		s.TagPairCounts[p] += n
	}
	for p, n := range o.PCRPairCounts {
		s.PCRPairCounts[p] += n
	}
	for b, n := range o.BarcodeCounts {
		s.BarcodeCounts[b] += n
	}
}

// ValidFraction is the fraction of input reads with four valid barcodes.
func (s *RunStatistics) ValidFraction() float64 {
	if s.TotalInput == 0 {
		return 0
	}
	return float64(s.AllBarcodes) / float64(s.TotalInput)
}

// Summary converts s to the statistics record of the run.
func (s *RunStatistics) Summary(samples []string) report.Summary {
	sum := report.Summary{
		TotalInputReads:     s.TotalInput,
		TagmentationI7:      s.Valid[chemistry.TagI7],
		TagmentationI5:      s.Valid[chemistry.TagI5],
		Tagmentation:        s.Tagmentation,
		TagmentationMatch:   s.TagmentationMatch,
		PCRI7:               s.Valid[chemistry.PCRI7],
		PCRI5:               s.Valid[chemistry.PCRI5],
		PCR:                 s.PCR,
		PCRMatch:            s.PCRMatch,
		AllBarcodes:         s.AllBarcodes,
		NotSpecified:        s.NotSpecified,
		AmbiguousInManifest: s.Ambiguous,
		SampleReads:         make(map[string]int64, len(samples)),
	}
	for i, name := range samples {
		sum.SampleReads[name] = s.SampleReads[i]
	}
	return sum
}

// PairCounts returns a count row for every reference pair, in order.
func PairCounts(pairs []samplesheet.Pair, counts map[samplesheet.Pair]int64) ([]report.PairCount, error) {
	rows := make([]report.PairCount, len(pairs))
	for i, p := range pairs {
		row, err := report.NewPairCount(p.I7, p.I5, counts[p])
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}
	return rows, nil
}
