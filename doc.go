// Package zipkit reads and writes classic zip archives with a built-in
// DEFLATE codec, with no dependency on the standard library's archive or
// compression packages.
//
// The package has three layers:
//   - Raw buffer compression: [Compress], [Uncompress] and [UncompressSize]
//     operate on whole byte slices with no zip framing.
//   - Archive handles: [Reader] parses a central directory eagerly and
//     extracts verified entries; [Writer] appends entries and finalizes the
//     central directory.
//   - One-shot operations: [Zip], [Unzip], [AddInPlace], [ExtractStreaming]
//     and [Stats] wrap the handles for the common cases.
//
// # Quick Start
//
// Create an archive and read it back:
//
//	err := zipkit.Zip("out.zip", []string{"a.txt", "b.txt"},
//	    zipkit.WithLevel(9),
//	)
//	if err != nil {
//	    return err
//	}
//	err = zipkit.Unzip("out.zip", "./extracted")
//
// Append to an existing archive without rewriting its entries:
//
//	err = zipkit.AddInPlace("out.zip", "notes/c.txt", []byte("hello"))
//
// # Errors
//
// Every failure maps to one sentinel from the closed set in this package
// (for example [ErrNotAnArchive], [ErrCrcCheckFailed]); [CodeOf] recovers
// the class from a wrapped chain. Operations fail fast with the most
// specific error and never silently repair a corrupt archive.
//
// # Concurrency
//
// Handles are single-threaded: no method of a Reader or Writer may be
// invoked concurrently on the same handle. Distinct handles share no
// state. [Unzip] can fan out extraction across goroutines internally via
// [WithWorkers].
package zipkit
