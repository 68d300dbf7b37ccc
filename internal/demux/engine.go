// Package demux assigns paired reads to samples by their combinatorial
// barcodes and writes one pair of FASTQ files per sample.
package demux

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/pkg/errors"

	"github.com/Altius/stampipes/programs/sciatac_demux/internal/chemistry"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/compress"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/layout"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/mismatch"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/report"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/samplesheet"
)

var (
	// ErrNoReads is returned for inputs without a single read pair.
	ErrNoReads = errors.New("no reads found in fastq input")
	// ErrLowValidRate is returned after a complete scan when too few reads
	// carried four correctable barcodes. It usually means the chemistry or
	// instrument settings do not match the data.
	ErrLowValidRate = errors.New("too few reads passed barcode correction")
)

const writerCacheSize = 1 << 20

// Options configure a run.
type Options struct {
	OutDir  string
	RunName string
	Lane    string
	// WellIDs labels reads with plate wells instead of barcode sequences.
	WellIDs       bool
	MaxMismatches int
	AllowN        bool
	// Threads chunks of ChunkSize read pairs are classified concurrently.
	Threads   int
	ChunkSize int
	// MinValidFraction is the smallest acceptable fraction of reads with
	// four valid barcodes.
	MinValidFraction float64
	// Compress gzips the sample outputs after a successful run.
	Compress bool
}

// Engine classifies read pairs against a compiled sample table. It is
// read-only once built; all counting happens in per-worker statistics.
type Engine struct {
	profile *chemistry.Profile
	recipe  layout.Recipe
	table   *samplesheet.Table
	opts    Options
	indexes [chemistry.NumChannels]*mismatch.Index
	labels  *labeler
}

// New builds the mismatch indexes of every channel and checks that the
// recipe and label settings fit the profile.
func New(p *chemistry.Profile, r layout.Recipe, t *samplesheet.Table, opts Options) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var lengths [chemistry.NumChannels]int
	for _, ch := range chemistry.Channels {
		lengths[ch] = p.BarcodeLen(ch)
	}
	if err := r.CheckLengths(lengths); err != nil {
		return nil, err
	}
	if opts.Threads < 1 {
		opts.Threads = 1
	}
	if opts.ChunkSize < 1 {
		opts.ChunkSize = 10000
	}
	e := &Engine{profile: p, recipe: r, table: t, opts: opts}
	labels, err := newLabeler(p, opts.WellIDs)
	if err != nil {
		return nil, err
	}
	e.labels = labels

	err = traverse.Each(chemistry.NumChannels, func(i int) error {
		ch := chemistry.Channels[i]
		idx, err := mismatch.New(p.Oriented(ch), opts.MaxMismatches, opts.AllowN)
		if err != nil {
			return errors.Wrapf(err, "%s whitelist", ch)
		}
		e.indexes[ch] = idx
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, ch := range chemistry.Channels {
		log.Printf("%s: %d barcodes, correction table sizes %v", ch, len(p.Whitelists[ch]), e.indexes[ch].Len())
	}
	log.Printf("layout %s (recipe %d)", r.Name, r.ID)
	return e, nil
}

// SampleOutputs returns the R1 and R2 output paths of a sample.
func (e *Engine) SampleOutputs(sample string) (r1, r2 string) {
	base := filepath.Join(e.opts.OutDir, fmt.Sprintf("%s-%s_%s", sample, e.opts.RunName, e.opts.Lane))
	return base + "_R1.fastq", base + "_R2.fastq"
}

// ReportPath returns the path of a run level record, such as
// "stats.json" or "index_counts.tsv".
func (e *Engine) ReportPath(kind string) string {
	return filepath.Join(e.opts.OutDir, fmt.Sprintf("%s_%s.%s", e.opts.RunName, e.opts.Lane, kind))
}

// Run demultiplexes the pairs of r1 and r2. Statistics and count tables
// are written even when the run fails the valid read check; the returned
// statistics are nil only when the scan itself failed.
func (e *Engine) Run(ctx context.Context, r1, r2 string) (*RunStatistics, error) {
	start := time.Now()
	if err := os.MkdirAll(e.opts.OutDir, 0755); err != nil {
		return nil, errors.Wrap(err, "creating output directory")
	}
	reader, err := OpenPairs(r1, r2)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	writers, err := e.openOutputs()
	if err != nil {
		return nil, err
	}
	stats, err := e.scan(ctx, reader, writers)
	var paths []string
	for _, pair := range writers {
		for _, w := range pair {
			if cerr := w.Close(); cerr != nil && err == nil {
				err = cerr
			}
			paths = append(paths, w.Path())
		}
	}
	if err != nil {
		return nil, err
	}
	if stats.TotalInput == 0 {
		for _, path := range paths {
			if err := os.Remove(path); err != nil {
				log.Error.Printf("removing empty output %s: %v", path, err)
			}
		}
		return stats, ErrNoReads
	}
	log.Printf("done correcting barcodes of %d read pairs in %v", stats.TotalInput, time.Since(start))

	if err := e.writeReports(stats); err != nil {
		return stats, err
	}
	if frac := stats.ValidFraction(); frac < e.opts.MinValidFraction {
		return stats, errors.Wrapf(ErrLowValidRate,
			"only %.2f%% of reads have four correctable barcodes (minimum %.2f%%); check the index sets and library configuration",
			100*frac, 100*e.opts.MinValidFraction)
	}
	if e.opts.Compress {
		start = time.Now()
		if err := compress.Files(paths, e.opts.Threads); err != nil {
			return stats, err
		}
		log.Printf("done compressing in %v", time.Since(start))
	}
	return stats, nil
}

// openOutputs opens the R1 and R2 streams of every manifest sample.
func (e *Engine) openOutputs() ([][2]*RecordWriter, error) {
	samples := e.table.Samples()
	writers := make([][2]*RecordWriter, 0, len(samples))
	for _, s := range samples {
		p1, p2 := e.SampleOutputs(s)
		w1, err := NewRecordWriter(p1, writerCacheSize)
		if err != nil {
			closeAll(writers)
			return nil, err
		}
		w2, err := NewRecordWriter(p2, writerCacheSize)
		if err != nil {
			w1.Close()
			closeAll(writers)
			return nil, err
		}
		writers = append(writers, [2]*RecordWriter{w1, w2})
	}
	return writers, nil
}

func closeAll(writers [][2]*RecordWriter) {
	for _, pair := range writers {
		pair[0].Close()
		pair[1].Close()
	}
}

// scan reads batches of Threads chunks, classifies the chunks of a batch
// concurrently and writes their output in input order.
func (e *Engine) scan(ctx context.Context, reader *PairReader, writers [][2]*RecordWriter) (*RunStatistics, error) {
	nSamples := len(e.table.Samples())
	stats := NewRunStatistics(nSamples)
	var readNum int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var chunks [][]*Pair
		for len(chunks) < e.opts.Threads {
			chunk, err := reader.ReadChunk(e.opts.ChunkSize)
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, chunk)
		}
		if len(chunks) == 0 {
			return stats, nil
		}
		starts := make([]int64, len(chunks))
		for i, chunk := range chunks {
			starts[i] = readNum
			readNum += int64(len(chunk))
		}
		workers := make([]*worker, len(chunks))
		err := traverse.Each(len(chunks), func(i int) error {
			w := e.newWorker(nSamples)
			for j, pair := range chunks[i] {
				w.process(pair, starts[i]+int64(j)+1)
			}
			workers[i] = w
			return nil
		})
		if err != nil {
			return nil, err
		}
		for _, w := range workers {
			stats.Merge(w.stats)
			for s, out := range w.out {
				for r := range out {
					if len(out[r]) == 0 {
						continue
					}
					if err := writers[s][r].Write(out[r]); err != nil {
						return nil, err
					}
				}
			}
		}
		log.Debug.Printf("processed %d read pairs", readNum)
	}
}

func (e *Engine) writeReports(stats *RunStatistics) error {
	if err := report.WriteSummary(e.ReportPath("stats.json"), stats.Summary(e.table.Samples())); err != nil {
		return err
	}
	counts := &report.IndexCounts{Counts: stats.IndexCounts}
	for _, ch := range chemistry.Channels {
		counts.Sizes[ch] = len(e.profile.Whitelists[ch])
	}
	if err := report.WriteIndexCounts(e.ReportPath("index_counts.tsv"), counts); err != nil {
		return err
	}
	tagRows, err := PairCounts(e.table.TagPairs(), stats.TagPairCounts)
	if err != nil {
		return err
	}
	if err := report.WritePairCounts(e.ReportPath("tag_pair_counts.tsv"), tagRows); err != nil {
		return err
	}
	pcrRows, err := PairCounts(e.table.PCRPairs(), stats.PCRPairCounts)
	if err != nil {
		return err
	}
	if err := report.WritePairCounts(e.ReportPath("pcr_pair_counts.tsv"), pcrRows); err != nil {
		return err
	}
	return report.WriteBarcodeCounts(e.ReportPath("barcode_counts.tsv"), e.opts.Lane, stats.BarcodeCounts)
}

// worker classifies one chunk with private statistics and per-sample
// output buffers.
type worker struct {
	e     *Engine
	stats *RunStatistics
	// out holds the R1 and R2 FASTQ data of each sample.
	out [][2][]byte
}

func (e *Engine) newWorker(nSamples int) *worker {
	return &worker{e: e, stats: NewRunStatistics(nSamples), out: make([][2][]byte, nSamples)}
}

// process classifies one read pair. readNum is its 1-based position in
// the input.
func (w *worker) process(p *Pair, readNum int64) {
	e, st := w.e, w.stats
	st.TotalInput++

	var (
		idx [chemistry.NumChannels]int
		ok  [chemistry.NumChannels]bool
	)
	if segs, sliced := e.recipe.Slice(p.Name); sliced {
		for _, ch := range chemistry.Channels {
			idx[ch], ok[ch] = e.indexes[ch].CorrectIndex(segs[ch])
			if ok[ch] {
				st.Valid[ch]++
				st.IndexCounts[ch][idx[ch]]++
			}
		}
	}
	if ok[chemistry.TagI7] && ok[chemistry.TagI5] {
		st.Tagmentation++
		pair := samplesheet.Pair{I7: idx[chemistry.TagI7], I5: idx[chemistry.TagI5]}
		if e.table.HasTagPair(pair) {
			st.TagmentationMatch++
			st.TagPairCounts[pair]++
		}
	}
	if ok[chemistry.PCRI7] && ok[chemistry.PCRI5] {
		st.PCR++
		pair := samplesheet.Pair{I7: idx[chemistry.PCRI7], I5: idx[chemistry.PCRI5]}
		if e.table.HasPCRPair(pair) {
			st.PCRMatch++
			st.PCRPairCounts[pair]++
		}
	}
	for _, valid := range ok {
		if !valid {
			return
		}
	}
	st.AllBarcodes++

	// Whitelist positions are shared by both orientations, so idx already
	// names the canonical i5 barcodes.
	display := e.labels.display(idx)
	st.BarcodeCounts[display]++

	s, found, ambiguous := e.table.LookupIndex(idx)
	if !found {
		st.NotSpecified++
		if ambiguous {
			st.Ambiguous++
		}
		return
	}
	st.SampleReads[s]++
	header := Header(display, readNum)
	w.out[s][0] = AppendFastq(w.out[s][0], header, p.Seq1, p.Qual1)
	w.out[s][1] = AppendFastq(w.out[s][1], header, p.Seq2, p.Qual2)
}
