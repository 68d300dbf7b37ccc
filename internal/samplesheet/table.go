package samplesheet

import (
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/pkg/errors"

	"github.com/Altius/stampipes/programs/sciatac_demux/config"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/chemistry"
)

// Policy decides what happens when two samples produce the same lookup key.
type Policy int

const (
	// LastWins lets the later manifest sample take the key.
	LastWins Policy = iota
	// Reject fails compilation.
	Reject
	// Unassigned marks the key ambiguous; its reads go to no sample.
	Unassigned
)

// ParsePolicy maps a collision-policy setting to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case config.PolicyLastWins, "":
		return LastWins, nil
	case config.PolicyReject:
		return Reject, nil
	case config.PolicyUnassigned:
		return Unassigned, nil
	}
	return LastWins, config.Errorf("unknown collision policy %q", s)
}

func (p Policy) String() string {
	switch p {
	case Reject:
		return config.PolicyReject
	case Unassigned:
		return config.PolicyUnassigned
	default:
		return config.PolicyLastWins
	}
}

// Options control table compilation.
type Options struct {
	// NoMask makes every channel part of the lookup key.
	NoMask bool
	Policy Policy
}

// Pair is an (i7, i5) pair of 0-based whitelist positions.
type Pair struct {
	I7, I5 int
}

// Key holds one whitelist position per channel, indexed by
// chemistry.Channel. Inactive channels are -1.
type Key [chemistry.NumChannels]int16

const ambiguous = -1

// Table assigns corrected barcode combinations to samples. It is read-only
// after Compile and safe for concurrent use.
type Table struct {
	mask    [chemistry.NumChannels]bool
	samples []string
	lookup  map[Key]int32
	// positions maps canonical sequences to whitelist positions.
	positions [chemistry.NumChannels]map[string]int
	tagPairs  map[Pair]struct{}
	pcrPairs  map[Pair]struct{}
}

// Compile builds the lookup table for samples against the canonical
// whitelists, indexed by chemistry.Channel.
//
// A channel is active when at least two samples allow different index sets
// for it. Only active channels are part of the lookup key, so the barcode
// read in an inactive channel is never checked against the manifest.
func Compile(samples []Sample, whitelists [chemistry.NumChannels][]string, opts Options) (*Table, error) {
	if len(samples) == 0 {
		return nil, config.Errorf("manifest has no samples")
	}
	t := &Table{
		samples:  make([]string, len(samples)),
		lookup:   make(map[Key]int32),
		tagPairs: make(map[Pair]struct{}),
		pcrPairs: make(map[Pair]struct{}),
	}
	for _, ch := range chemistry.Channels {
		t.positions[ch] = make(map[string]int, len(whitelists[ch]))
		for i, seq := range whitelists[ch] {
			t.positions[ch][seq] = i
		}
	}

	sets := make([][chemistry.NumChannels][]int, len(samples))
	for i, s := range samples {
		t.samples[i] = s.ID
		for _, ch := range chemistry.Channels {
			set, err := normalize(s.Indices[ch], len(whitelists[ch]))
			if err != nil {
				return nil, config.Errorf("sample %s: %s: %v", s.ID, ch, err)
			}
			sets[i][ch] = set
		}
	}

	for _, ch := range chemistry.Channels {
		t.mask[ch] = opts.NoMask
		for i := 1; i < len(sets) && !t.mask[ch]; i++ {
			t.mask[ch] = !equal(sets[0][ch], sets[i][ch])
		}
	}
	log.Debug.Printf("channel mask: %v", t.describeMask())

	collisions := 0
	for i, s := range sets {
		var k Key
		for ch := range k {
			k[ch] = -1
		}
		var err error
		t.product(s, 0, &k, func(k Key) bool {
			prev, exists := t.lookup[k]
			if !exists || prev == int32(i) {
				t.lookup[k] = int32(i)
				return true
			}
			collisions++
			switch opts.Policy {
			case Reject:
				err = config.Errorf("samples %s and %s share barcode combination %s",
					t.sampleName(prev), t.samples[i], t.describeKey(k))
				return false
			case Unassigned:
				t.lookup[k] = ambiguous
			default:
				t.lookup[k] = int32(i)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		for _, i7 := range s[chemistry.TagI7] {
			for _, i5 := range s[chemistry.TagI5] {
				t.tagPairs[Pair{i7, i5}] = struct{}{}
			}
		}
		for _, i7 := range s[chemistry.PCRI7] {
			for _, i5 := range s[chemistry.PCRI5] {
				t.pcrPairs[Pair{i7, i5}] = struct{}{}
			}
		}
	}
	if collisions > 0 {
		log.Printf("%d barcode combinations are claimed by more than one sample (policy %s)", collisions, opts.Policy)
	}
	log.Printf("sample table: %d samples, %d keys of arity %d, %d tagmentation pairs, %d PCR pairs",
		len(t.samples), len(t.lookup), t.Arity(), len(t.tagPairs), len(t.pcrPairs))
	return t, nil
}

// normalize sorts and dedups an index set and checks it against the
// whitelist size.
func normalize(indices []int, n int) ([]int, error) {
	if len(indices) == 0 {
		return nil, errors.New("no allowed indices")
	}
	set := append([]int(nil), indices...)
	sort.Ints(set)
	out := set[:0]
	for i, v := range set {
		if v < 0 || v >= n {
			return nil, errors.Errorf("index %d is outside the %d entry whitelist", v+1, n)
		}
		if i > 0 && v == set[i-1] {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func equal(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// product calls fn with every key built from the active channels of s, in
// key channel order. It stops when fn returns false.
func (t *Table) product(s [chemistry.NumChannels][]int, depth int, k *Key, fn func(Key) bool) bool {
	if depth == len(chemistry.KeyOrder) {
		return fn(*k)
	}
	ch := chemistry.KeyOrder[depth]
	if !t.mask[ch] {
		return t.product(s, depth+1, k, fn)
	}
	for _, v := range s[ch] {
		k[ch] = int16(v)
		if !t.product(s, depth+1, k, fn) {
			return false
		}
	}
	k[ch] = -1
	return true
}

// Mask returns the channel activity mask, indexed by chemistry.Channel.
func (t *Table) Mask() [chemistry.NumChannels]bool { return t.mask }

// Arity returns the number of active channels, the length of every key.
func (t *Table) Arity() int {
	n := 0
	for _, active := range t.mask {
		if active {
			n++
		}
	}
	return n
}

// Samples lists the manifest samples in manifest order.
func (t *Table) Samples() []string { return t.samples }

// Len returns the number of lookup keys.
func (t *Table) Len() int { return len(t.lookup) }

// LookupIndex finds the sample for corrected whitelist positions, indexed by
// chemistry.Channel. Positions of inactive channels are ignored. ok is false
// when no sample claims the combination or when it is ambiguous.
func (t *Table) LookupIndex(idx [chemistry.NumChannels]int) (sample int, ok, isAmbiguous bool) {
	var k Key
	for ch, active := range t.mask {
		if active {
			k[ch] = int16(idx[ch])
		} else {
			k[ch] = -1
		}
	}
	v, found := t.lookup[k]
	switch {
	case !found:
		return -1, false, false
	case v == ambiguous:
		return -1, false, true
	}
	return int(v), true, false
}

// Lookup is LookupIndex for canonical barcode sequences.
func (t *Table) Lookup(seqs [chemistry.NumChannels]string) (sample string, ok, isAmbiguous bool) {
	var idx [chemistry.NumChannels]int
	for ch, active := range t.mask {
		if !active {
			continue
		}
		p, found := t.positions[ch][seqs[ch]]
		if !found {
			return "", false, false
		}
		idx[ch] = p
	}
	i, ok, isAmbiguous := t.LookupIndex(idx)
	if !ok {
		return "", false, isAmbiguous
	}
	return t.samples[i], true, false
}

// HasTagPair reports whether any sample allows the tagmentation pair.
func (t *Table) HasTagPair(p Pair) bool {
	_, ok := t.tagPairs[p]
	return ok
}

// HasPCRPair reports whether any sample allows the PCR pair.
func (t *Table) HasPCRPair(p Pair) bool {
	_, ok := t.pcrPairs[p]
	return ok
}

// TagPairs returns the tagmentation pairs allowed by the manifest, sorted.
func (t *Table) TagPairs() []Pair { return sortedPairs(t.tagPairs) }

// PCRPairs returns the PCR pairs allowed by the manifest, sorted.
func (t *Table) PCRPairs() []Pair { return sortedPairs(t.pcrPairs) }

func sortedPairs(m map[Pair]struct{}) []Pair {
	out := make([]Pair, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].I7 != out[j].I7 {
			return out[i].I7 < out[j].I7
		}
		return out[i].I5 < out[j].I5
	})
	return out
}

// Entry is one row of the lookup table.
type Entry struct {
	Key Key
	// Sample is empty for ambiguous keys.
	Sample    string
	Ambiguous bool
}

// Entries returns every lookup key, ordered by sample then by key in key
// channel order. Ambiguous keys come last.
func (t *Table) Entries() []Entry {
	type row struct {
		k Key
		v int32
	}
	rows := make([]row, 0, len(t.lookup))
	for k, v := range t.lookup {
		rows = append(rows, row{k, v})
	}
	rank := func(v int32) int32 {
		if v == ambiguous {
			return int32(len(t.samples))
		}
		return v
	}
	sort.Slice(rows, func(i, j int) bool {
		if ri, rj := rank(rows[i].v), rank(rows[j].v); ri != rj {
			return ri < rj
		}
		for _, ch := range chemistry.KeyOrder {
			if rows[i].k[ch] != rows[j].k[ch] {
				return rows[i].k[ch] < rows[j].k[ch]
			}
		}
		return false
	})
	out := make([]Entry, len(rows))
	for i, r := range rows {
		out[i] = Entry{Key: r.k, Sample: t.sampleName(r.v), Ambiguous: r.v == ambiguous}
	}
	return out
}

func (t *Table) sampleName(v int32) string {
	if v == ambiguous {
		return ""
	}
	return t.samples[v]
}

func (t *Table) describeMask() string {
	var parts []string
	for _, ch := range chemistry.KeyOrder {
		state := "inactive"
		if t.mask[ch] {
			state = "active"
		}
		parts = append(parts, ch.String()+"="+state)
	}
	return strings.Join(parts, " ")
}

// describeKey formats the 1-based positions of a key in key channel order.
func (t *Table) describeKey(k Key) string {
	var parts []string
	for _, ch := range chemistry.KeyOrder {
		if k[ch] >= 0 {
			parts = append(parts, ch.String()+":"+strconv.Itoa(int(k[ch])+1))
		}
	}
	if len(parts) == 0 {
		return "(all channels inactive)"
	}
	return strings.Join(parts, ",")
}
