// Package layout describes where the four barcode segments sit in a read
// name, for the index read configurations bcl2fastq produces.
package layout

import (
	"sort"

	"github.com/Altius/stampipes/programs/sciatac_demux/config"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/chemistry"
)

// Window is a fixed substring of the read name suffix.
type Window struct {
	Offset, Len int
}

// Recipe locates the barcode segments within the last SuffixLen bytes of
// an R1 read name. Windows is indexed by chemistry.Channel.
type Recipe struct {
	ID        int
	Name      string
	SuffixLen int
	Windows   [chemistry.NumChannels]Window
}

// The i7 index read carries the tagmentation i7 barcode followed by the PCR
// i7 barcode; the i5 read carries PCR i5 then tagmentation i5, or the
// reverse on instruments that read i5 reverse complemented. bcl2fastq
// joins the two index reads with '+'.
var recipes = map[int]Recipe{
	1: {1, "three-level", 41, [4]Window{{0, 10}, {10, 10}, {21, 10}, {31, 10}}},
	2: {2, "three-level-p5rc", 41, [4]Window{{0, 10}, {10, 10}, {31, 10}, {21, 10}}},
	3: {3, "two-level-tn5", 37, [4]Window{{0, 8}, {8, 10}, {19, 10}, {29, 8}}},
	4: {4, "two-level-tn5-p5rc", 37, [4]Window{{0, 8}, {8, 10}, {27, 10}, {19, 8}}},
	5: {5, "three-level-nosep", 40, [4]Window{{0, 10}, {10, 10}, {20, 10}, {30, 10}}},
	6: {6, "three-level-nosep-p5rc", 40, [4]Window{{0, 10}, {10, 10}, {30, 10}, {20, 10}}},
}

// Recipes returns every known recipe ordered by ID.
func Recipes() []Recipe {
	out := make([]Recipe, 0, len(recipes))
	for _, r := range recipes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Select picks the recipe for a run. A non-zero override names a recipe
// directly and wins over the chemistry flags.
func Select(twoLevel, p5RC bool, override int) (Recipe, error) {
	if override != 0 {
		r, ok := recipes[override]
		if !ok {
			return Recipe{}, config.Errorf("unrecognized layout recipe %d", override)
		}
		return r, nil
	}
	switch {
	case !twoLevel && !p5RC:
		return recipes[1], nil
	case !twoLevel && p5RC:
		return recipes[2], nil
	case twoLevel && !p5RC:
		return recipes[3], nil
	default:
		return recipes[4], nil
	}
}

// ForProfile selects a recipe for the profile's flags and checks that its
// windows match the profile's barcode lengths.
func ForProfile(p *chemistry.Profile, override int) (Recipe, error) {
	if err := p.Validate(); err != nil {
		return Recipe{}, err
	}
	r, err := Select(p.TwoLevel, p.P5RC, override)
	if err != nil {
		return Recipe{}, err
	}
	var lengths [chemistry.NumChannels]int
	for _, ch := range chemistry.Channels {
		lengths[ch] = p.BarcodeLen(ch)
	}
	if err := r.CheckLengths(lengths); err != nil {
		return Recipe{}, err
	}
	return r, nil
}

// CheckLengths confirms that each window is as long as the barcodes of its
// channel.
func (r Recipe) CheckLengths(lengths [chemistry.NumChannels]int) error {
	for _, ch := range chemistry.Channels {
		if r.Windows[ch].Len != lengths[ch] {
			return config.Errorf("layout %s reads %d bases of %s but its barcodes are %d long",
				r.Name, r.Windows[ch].Len, ch, lengths[ch])
		}
	}
	return nil
}

// Slice cuts the four raw barcode segments out of a read name. ok is false
// when the name is shorter than the recipe's suffix.
func (r Recipe) Slice(name string) (segs [chemistry.NumChannels]string, ok bool) {
	if len(name) < r.SuffixLen {
		return segs, false
	}
	suffix := name[len(name)-r.SuffixLen:]
	for ch, w := range r.Windows {
		segs[ch] = suffix[w.Offset : w.Offset+w.Len]
	}
	return segs, true
}
