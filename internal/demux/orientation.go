package demux

import (
	"io"

	"github.com/pkg/errors"

	"github.com/Altius/stampipes/programs/sciatac_demux/internal/chemistry"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/layout"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/mismatch"
)

// OrientationResult counts how many probed reads carry a correctable PCR i5
// barcode when read forward and when read reverse complemented.
type OrientationResult struct {
	Examined int64
	Forward  int64
	Reverse  int64
}

// ForwardFraction is Forward/Examined.
func (r OrientationResult) ForwardFraction() float64 { return fraction(r.Forward, r.Examined) }

// ReverseFraction is Reverse/Examined.
func (r OrientationResult) ReverseFraction() float64 { return fraction(r.Reverse, r.Examined) }

// P5RC reports whether the reads look like they come from an instrument
// that reads i5 reverse complemented.
func (r OrientationResult) P5RC() bool { return r.Reverse > r.Forward }

func fraction(n, d int64) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// ProbeOrientation reads R1 records skip+1 through skip+examine of path and
// corrects their PCR i5 segment under both i5 orientations.
func ProbeOrientation(path string, p *chemistry.Profile, maxMismatches int, skip, examine int64) (OrientationResult, error) {
	var res OrientationResult
	fwdProfile, revProfile := *p, *p
	fwdProfile.P5RC, revProfile.P5RC = false, true

	fwdRecipe, err := layout.Select(p.TwoLevel, false, 0)
	if err != nil {
		return res, err
	}
	revRecipe, err := layout.Select(p.TwoLevel, true, 0)
	if err != nil {
		return res, err
	}
	fwd, err := mismatch.New(fwdProfile.Oriented(chemistry.PCRI5), maxMismatches, true)
	if err != nil {
		return res, err
	}
	rev, err := mismatch.New(revProfile.Oriented(chemistry.PCRI5), maxMismatches, true)
	if err != nil {
		return res, err
	}

	r, err := openFastq(path)
	if err != nil {
		return res, err
	}
	if r == nil {
		return res, ErrNoReads
	}
	defer r.Close()
	for n := int64(0); res.Examined < examine; n++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, errors.Wrapf(err, "reading %s", path)
		}
		if n < skip {
			continue
		}
		res.Examined++
		name := string(rec.Name)
		if segs, ok := fwdRecipe.Slice(name); ok {
			if _, ok := fwd.CorrectIndex(segs[chemistry.PCRI5]); ok {
				res.Forward++
			}
		}
		if segs, ok := revRecipe.Slice(name); ok {
			if _, ok := rev.CorrectIndex(segs[chemistry.PCRI5]); ok {
				res.Reverse++
			}
		}
	}
	if res.Examined == 0 {
		return res, errors.Wrapf(ErrNoReads, "%s has no reads after the first %d", path, skip)
	}
	return res, nil
}
