// Package mismatch builds error tolerant lookups from observed barcode
// sequences to the whitelist sequence they were most likely read from.
package mismatch

import (
	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
)

var (
	bases      = []byte{'A', 'C', 'G', 'T'}
	basesWithN = []byte{'A', 'C', 'G', 'T', 'N'}
)

// Alphabet returns the substitution alphabet, optionally including N.
func Alphabet(allowN bool) []byte {
	if allowN {
		return basesWithN
	}
	return bases
}

// Substitutions returns every sequence that differs from seq at exactly k
// distinct positions, each changed to another letter of the alphabet.
func Substitutions(seq string, k int, alphabet []byte) (out []string) {
	if k < 0 || k > len(seq) {
		return nil
	}
	buf := []byte(seq)
	var walk func(start, remaining int)
	walk = func(start, remaining int) {
		if remaining == 0 {
			out = append(out, string(buf))
			return
		}
		for i := start; i <= len(seq)-remaining; i++ {
			orig := buf[i]
			for _, c := range alphabet {
				if c == orig {
					continue
				}
				buf[i] = c
				walk(i+1, remaining-1)
			}
			buf[i] = orig
		}
	}
	walk(0, k)
	return out
}

// MaxSupportedDist bounds the edit distance of New. A 384 entry whitelist
// of 10 base barcodes needs tens of millions of entries at distance 4.
const MaxSupportedDist = 3

// Index maps observed sequences to whitelist entries. Level k holds the
// sequences reachable from exactly one whitelist entry by k substitutions.
// An Index is read-only after construction and safe for concurrent use.
type Index struct {
	whitelist []string
	levels    []map[string]int32
}

// New builds an Index allowing up to maxDist substitutions. The whitelist
// must contain distinct, equal length sequences over ACGT.
//
// A generated sequence that is reachable from two different whitelist
// entries at the same distance is dropped from that level, as is any
// sequence that is itself on the whitelist. Dropped sequences stay
// excluded at every greater distance.
func New(whitelist []string, maxDist int, allowN bool) (*Index, error) {
	if len(whitelist) == 0 {
		return nil, errors.New("empty barcode whitelist")
	}
	if maxDist < 0 || maxDist > MaxSupportedDist {
		return nil, errors.Errorf("edit distance %d outside [0,%d]", maxDist, MaxSupportedDist)
	}
	n := len(whitelist[0])
	level0 := make(map[string]int32, len(whitelist))
	for i, w := range whitelist {
		if len(w) != n {
			return nil, errors.Errorf("barcode %s has length %d, other barcodes have length %d", w, len(w), n)
		}
		for j := 0; j < len(w); j++ {
			switch w[j] {
			case 'A', 'C', 'G', 'T':
			default:
				return nil, errors.Errorf("invalid base %c in barcode %s", w[j], w)
			}
		}
		if _, dup := level0[w]; dup {
			return nil, errors.Errorf("duplicate barcode %s in whitelist", w)
		}
		level0[w] = int32(i)
	}

	idx := &Index{
		whitelist: whitelist,
		levels:    make([]map[string]int32, maxDist+1),
	}
	idx.levels[0] = level0

	conflicts := make(map[string]struct{}, len(whitelist))
	for _, w := range whitelist {
		conflicts[w] = struct{}{}
	}
	alphabet := Alphabet(allowN)
	for k := 1; k <= maxDist; k++ {
		level := make(map[string]int32)
		for i, w := range whitelist {
			for _, s := range Substitutions(w, k, alphabet) {
				if prev, ok := level[s]; ok && prev != int32(i) {
					conflicts[s] = struct{}{}
				}
				level[s] = int32(i)
			}
		}
		for s := range conflicts {
			delete(level, s)
		}
		log.Debug.Printf("mismatch level %d: %d sequences, %d conflicts so far", k, len(level), len(conflicts))
		idx.levels[k] = level
	}
	return idx, nil
}

// MaxDist returns the largest substitution count the index corrects.
func (x *Index) MaxDist() int { return len(x.levels) - 1 }

// Whitelist returns the canonical sequences, in index order.
func (x *Index) Whitelist() []string { return x.whitelist }

// Len returns the number of sequences at each level.
func (x *Index) Len() []int {
	out := make([]int, len(x.levels))
	for k, l := range x.levels {
		out[k] = len(l)
	}
	return out
}

// CorrectIndex returns the whitelist position of the entry observed
// corrects to, trying 0 substitutions first. ok is false when observed is
// not within the index's edit distance of exactly one entry.
func (x *Index) CorrectIndex(observed string) (i int, ok bool) {
	for _, level := range x.levels {
		if v, found := level[observed]; found {
			return int(v), true
		}
	}
	return -1, false
}

// Correct returns the whitelist sequence observed corrects to.
func (x *Index) Correct(observed string) (string, bool) {
	i, ok := x.CorrectIndex(observed)
	if !ok {
		return "", false
	}
	return x.whitelist[i], true
}
