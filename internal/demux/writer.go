package demux

import (
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
)

// AppendFastq appends a FASTQ record with header line '@'+header to buf.
func AppendFastq(buf []byte, header string, seq, qual []byte) []byte {
	buf = append(buf, '@')
	buf = append(buf, header...)
	buf = append(buf, '\n')
	buf = append(buf, seq...)
	buf = append(buf, "\n+\n"...)
	buf = append(buf, qual...)
	return append(buf, '\n')
}

// Header is the output header of a read: the display barcode string and
// the 1-based read number.
func Header(display string, readNum int64) string {
	return display + ":" + strconv.FormatInt(readNum, 10)
}

// RecordWriter writes FASTQ data in an async fashion. Data is collected in
// a cache and handed to a writer goroutine whenever the cache fills up.
// Call Close() when you're done!
type RecordWriter struct {
	path   string
	writer *xopen.Writer
	cache  []byte
	size   int
	blocks chan []byte
	done   chan error

	mu  sync.Mutex
	err error
}

// NewRecordWriter creates path and starts its writer goroutine.
// cachesize: how many bytes to buffer before handing them off.
func NewRecordWriter(path string, cachesize int) (*RecordWriter, error) {
	writer, err := xopen.Wopen(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening output %s", path)
	}
	w := &RecordWriter{
		path:   path,
		writer: writer,
		cache:  make([]byte, 0, cachesize),
		size:   cachesize,
		blocks: make(chan []byte, 1),
		done:   make(chan error, 1),
	}
	go w.loop()
	return w, nil
}

func (w *RecordWriter) loop() {
	var err error
	for block := range w.blocks {
		if err != nil {
			continue
		}
		if _, err = w.writer.Write(block); err != nil {
			err = errors.Wrapf(err, "writing %s", w.path)
			w.setErr(err)
		}
	}
	if cerr := w.writer.Close(); cerr != nil && err == nil {
		err = errors.Wrapf(cerr, "closing %s", w.path)
	}
	w.done <- err
}

func (w *RecordWriter) setErr(err error) {
	w.mu.Lock()
	w.err = err
	w.mu.Unlock()
}

// Err returns the first write error, if any.
func (w *RecordWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Path returns the path of the output file.
func (w *RecordWriter) Path() string { return w.path }

// Write queues formatted FASTQ data. It returns the first error the writer
// goroutine ran into, so a failing output stops the run at the next write.
func (w *RecordWriter) Write(data []byte) error {
	w.cache = append(w.cache, data...)
	if len(w.cache) >= w.size {
		w.flush()
	}
	return w.Err()
}

func (w *RecordWriter) flush() {
	if len(w.cache) == 0 {
		return
	}
	w.blocks <- w.cache
	w.cache = make([]byte, 0, w.size)
}

// Close flushes the cache, waits for the writer goroutine and closes the
// file.
func (w *RecordWriter) Close() error {
	w.flush()
	close(w.blocks)
	return <-w.done
}
