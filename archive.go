package zipkit

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// Zip creates an archive at archivePath containing the listed files. Each
// file is stored under its cleaned slash-separated path when that is a
// valid entry name, otherwise under its base name. A failure removes the
// partial archive.
func Zip(archivePath string, files []string, opts ...Option) error {
	w, err := CreateWriter(archivePath, opts...)
	if err != nil {
		return err
	}
	for _, src := range files {
		name := filepath.ToSlash(filepath.Clean(src))
		if validateEntryName(name) != nil {
			name = filepath.Base(src)
		}
		if err := w.AddFile(name, src); err != nil {
			w.Close()
			os.Remove(archivePath)
			return err
		}
	}
	if err := w.Finalize(); err != nil {
		w.Close()
		os.Remove(archivePath)
		return err
	}
	return w.Close()
}

// Unzip extracts every entry of the archive at archivePath into destDir.
// Entry names are validated before joining so a crafted archive cannot
// escape destDir. WithWorkers extracts file entries concurrently.
func Unzip(archivePath, destDir string, opts ...Option) error {
	o := applyOptions(opts)
	r, err := OpenReader(archivePath, opts...)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrFileCreateFailed, err)
	}
	for i := 0; i < r.Count(); i++ {
		e, err := r.Entry(i)
		if err != nil {
			return err
		}
		if err := validateEntryName(e.Name); err != nil {
			return fmt.Errorf("%w: entry %q", ErrInvalidFilename, e.Name)
		}
	}

	dest := func(e *Entry) string {
		return filepath.Join(destDir, filepath.FromSlash(e.Name))
	}

	if o.workers <= 1 {
		for i := 0; i < r.Count(); i++ {
			e, err := r.Entry(i)
			if err != nil {
				return err
			}
			if err := r.ExtractToFile(i, dest(e)); err != nil {
				return err
			}
		}
		return nil
	}

	// Directories first so concurrent file extraction finds them in place.
	var g errgroup.Group
	g.SetLimit(o.workers)
	for i := 0; i < r.Count(); i++ {
		e, err := r.Entry(i)
		if err != nil {
			return err
		}
		if !e.IsDir() {
			continue
		}
		if err := r.ExtractToFile(i, dest(e)); err != nil {
			return err
		}
	}
	for i := 0; i < r.Count(); i++ {
		e, err := r.Entry(i)
		if err != nil {
			return err
		}
		if e.IsDir() {
			continue
		}
		i := i
		g.Go(func() error {
			return r.ExtractToFile(i, dest(e))
		})
	}
	return g.Wait()
}

// AddInPlace appends one entry to an existing archive, preserving every
// prior entry and the archive comment. WithComment sets the new entry's
// comment. The rewrite happens in place; a failure mid-way can leave the
// archive without a valid central directory.
func AddInPlace(archivePath, entryName string, data []byte, opts ...Option) error {
	o := applyOptions(opts)

	w, err := OpenWriterAppend(archivePath, WithLogger(o.logger))
	if err != nil {
		return err
	}
	entryOpts := []Option{WithLevel(o.level)}
	if o.comment != "" {
		entryOpts = append(entryOpts, WithComment(o.comment))
	}
	if err := w.AddBuffer(entryName, data, entryOpts...); err != nil {
		w.Close()
		return err
	}
	if err := w.Finalize(); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// ExtractStreaming extracts every file entry of the archive in order
// through sink. Offsets are cumulative over the concatenated output, and
// each entry's CRC32 is verified before any of its bytes reach the sink.
func ExtractStreaming(archivePath string, sink Sink, opts ...Option) error {
	if sink == nil {
		return fmt.Errorf("%w: nil sink", ErrInvalidParameter)
	}
	r, err := OpenReader(archivePath, opts...)
	if err != nil {
		return err
	}
	defer r.Close()

	var base int64
	for i := 0; i < r.Count(); i++ {
		e, err := r.Entry(i)
		if err != nil {
			return err
		}
		if e.IsDir() {
			continue
		}
		err = r.ExtractToSink(i, func(offset int64, chunk []byte) (int, error) {
			return sink(base+offset, chunk)
		})
		if err != nil {
			return err
		}
		base += int64(e.UncompressedSize)
	}
	return nil
}

// Stats returns the entry records of the archive in central directory
// order.
func Stats(archivePath string, opts ...Option) ([]Entry, error) {
	r, err := OpenReader(archivePath, opts...)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)
	return entries, nil
}
