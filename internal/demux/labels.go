package demux

import (
	"github.com/Altius/stampipes/programs/sciatac_demux/config"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/chemistry"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/well"
)

// labeler builds the display barcode string of a read from its corrected
// whitelist positions.
//
// Three-level reads are labeled {tagmentation i7}_{tagmentation i5}_{pcr}
// and two-level reads {tagmentation}_{pcr}. In sequence mode the tokens
// are canonical barcodes, the paired ones concatenated i7 first. In well
// mode the tagmentation i7 and i5 wells are row-major and column-major
// labels and paired tokens are combined plate wells (see well.PairLabel).
type labeler struct {
	twoLevel bool
	wellIDs  bool
	seqs     [chemistry.NumChannels][]string

	tagI7, tagI5 []string
	tag, pcr     [][]string
}

func newLabeler(p *chemistry.Profile, wellIDs bool) (*labeler, error) {
	l := &labeler{twoLevel: p.TwoLevel, wellIDs: wellIDs, seqs: p.Whitelists}
	if !wellIDs {
		return l, nil
	}
	var err error
	if l.pcr, err = pairLabels(p, chemistry.PCRI7, chemistry.PCRI5); err != nil {
		return nil, err
	}
	if p.TwoLevel {
		l.tag, err = pairLabels(p, chemistry.TagI7, chemistry.TagI5)
		return l, err
	}
	if l.tagI7, err = well.Labels(len(p.Whitelists[chemistry.TagI7]), well.RowMajor); err != nil {
		return nil, config.Errorf("well ids for %s: %v", chemistry.TagI7, err)
	}
	if l.tagI5, err = well.Labels(len(p.Whitelists[chemistry.TagI5]), well.ColumnMajor); err != nil {
		return nil, config.Errorf("well ids for %s: %v", chemistry.TagI5, err)
	}
	return l, nil
}

// pairLabels precomputes the combined well label of every (i7, i5) pair.
func pairLabels(p *chemistry.Profile, i7, i5 chemistry.Channel) ([][]string, error) {
	n := len(p.Whitelists[i7])
	if m := len(p.Whitelists[i5]); m != n {
		return nil, config.Errorf("well ids need equal %s and %s plates, have %d and %d barcodes", i7, i5, n, m)
	}
	out := make([][]string, n)
	for a := range out {
		out[a] = make([]string, n)
		for b := range out[a] {
			label, err := well.PairLabel(a, b, n)
			if err != nil {
				return nil, config.Errorf("well ids for %s/%s: %v", i7, i5, err)
			}
			out[a][b] = label
		}
	}
	return out, nil
}

func (l *labeler) display(idx [chemistry.NumChannels]int) string {
	ti7, pi7, pi5, ti5 := idx[chemistry.TagI7], idx[chemistry.PCRI7], idx[chemistry.PCRI5], idx[chemistry.TagI5]
	if l.wellIDs {
		if l.twoLevel {
			return l.tag[ti7][ti5] + "_" + l.pcr[pi7][pi5]
		}
		return l.tagI7[ti7] + "_" + l.tagI5[ti5] + "_" + l.pcr[pi7][pi5]
	}
	pcr := l.seqs[chemistry.PCRI7][pi7] + l.seqs[chemistry.PCRI5][pi5]
	if l.twoLevel {
		return l.seqs[chemistry.TagI7][ti7] + l.seqs[chemistry.TagI5][ti5] + "_" + pcr
	}
	return l.seqs[chemistry.TagI7][ti7] + "_" + l.seqs[chemistry.TagI5][ti5] + "_" + pcr
}
