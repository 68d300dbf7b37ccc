package demux

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seqio/fastx"
)

// Pair is one paired-end read. Name is the R1 header line without '@';
// the barcodes are read from its end.
type Pair struct {
	Name        string
	Seq1, Qual1 []byte
	Seq2, Qual2 []byte
}

// PairReader reads R1 and R2 in lock-step. Plain and gzipped FASTQ are
// both accepted.
type PairReader struct {
	r1, r2 *fastx.Reader
	n      int64
}

// openFastq opens a FASTQ file. An empty file yields a nil reader.
func openFastq(path string) (*fastx.Reader, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening reads")
	}
	if info.Size() == 0 {
		return nil, nil
	}
	r, err := fastx.NewDefaultReader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening reads %s", path)
	}
	return r, nil
}

// OpenPairs opens the R1 and R2 files of a run.
func OpenPairs(r1, r2 string) (*PairReader, error) {
	p := &PairReader{}
	var err error
	if p.r1, err = openFastq(r1); err != nil {
		return nil, err
	}
	if p.r2, err = openFastq(r2); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func next(r *fastx.Reader) (*fastx.Record, error) {
	if r == nil {
		return nil, io.EOF
	}
	return r.Read()
}

// Read returns the next pair, or io.EOF once both inputs are exhausted.
// Inputs with different record counts are an error.
func (p *PairReader) Read() (*Pair, error) {
	rec1, err1 := next(p.r1)
	if err1 != nil && err1 != io.EOF {
		return nil, errors.Wrapf(err1, "reading R1 record %d", p.n+1)
	}
	rec2, err2 := next(p.r2)
	if err2 != nil && err2 != io.EOF {
		return nil, errors.Wrapf(err2, "reading R2 record %d", p.n+1)
	}
	switch {
	case err1 == io.EOF && err2 == io.EOF:
		return nil, io.EOF
	case err1 == io.EOF:
		return nil, errors.Errorf("more reads in R2 input than in R1 input (%d)", p.n)
	case err2 == io.EOF:
		return nil, errors.Errorf("more reads in R1 input than in R2 input (%d)", p.n)
	}
	p.n++
	return &Pair{
		Name:  string(rec1.Name),
		Seq1:  append([]byte(nil), rec1.Seq.Seq...),
		Qual1: append([]byte(nil), rec1.Seq.Qual...),
		Seq2:  append([]byte(nil), rec2.Seq.Seq...),
		Qual2: append([]byte(nil), rec2.Seq.Qual...),
	}, nil
}

// ReadChunk reads up to n pairs. It returns fewer only at the end of the
// input, and io.EOF only when no pair was left.
func (p *PairReader) ReadChunk(n int) ([]*Pair, error) {
	chunk := make([]*Pair, 0, n)
	for len(chunk) < n {
		pair, err := p.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		chunk = append(chunk, pair)
	}
	if len(chunk) == 0 {
		return nil, io.EOF
	}
	return chunk, nil
}

// Count returns the number of pairs read so far.
func (p *PairReader) Count() int64 { return p.n }

// Close closes both inputs.
func (p *PairReader) Close() {
	if p.r1 != nil {
		p.r1.Close()
	}
	if p.r2 != nil {
		p.r2.Close()
	}
}
