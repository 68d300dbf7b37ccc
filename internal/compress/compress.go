// Package compress gzips finished output files in place.
package compress

import (
	"io"
	"os"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// Suffix is appended to the name of every compressed file.
const Suffix = ".gz"

// File compresses path to path+".gz" and removes path. A partially written
// .gz file is removed on failure.
func File(path string) (err error) {
	in, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening file to compress")
	}
	defer in.Close()

	dst := path + Suffix
	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, "creating compressed file")
	}
	defer func() {
		if err != nil {
			out.Close()
			os.Remove(dst)
		}
	}()

	gz, err := gzip.NewWriterLevel(out, gzip.DefaultCompression)
	if err != nil {
		return err
	}
	if _, err = io.Copy(gz, in); err != nil {
		return errors.Wrapf(err, "compressing %s", path)
	}
	if err = gz.Close(); err != nil {
		return errors.Wrapf(err, "compressing %s", path)
	}
	if err = out.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", dst)
	}
	if err = os.Remove(path); err != nil {
		return errors.Wrap(err, "removing uncompressed file")
	}
	return nil
}

// Files compresses every path, at most parallelism at a time.
func Files(paths []string, parallelism int) error {
	if parallelism < 1 {
		parallelism = 1
	}
	log.Printf("compressing %d files", len(paths))
	return traverse.Limit(parallelism).Each(len(paths), func(i int) error {
		log.Debug.Printf("compressing %s", paths[i])
		return File(paths[i])
	})
}
