// Command zipkit is a small archiver around the zipkit package.
//
// Usage:
//
//	zipkit zip [-level N] [-comment C] archive.zip file...
//	zipkit unzip [-workers N] archive.zip destdir
//	zipkit add [-level N] [-comment C] archive.zip name file
//	zipkit stat archive.zip
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/meigma/zipkit"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "zipkit:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: zipkit <zip|unzip|add|stat> [flags] args")
	}
	switch args[0] {
	case "zip":
		return runZip(args[1:])
	case "unzip":
		return runUnzip(args[1:])
	case "add":
		return runAdd(args[1:])
	case "stat":
		return runStat(args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func logger(verbose bool) *slog.Logger {
	if !verbose {
		return nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func runZip(args []string) error {
	fs := flag.NewFlagSet("zip", flag.ExitOnError)
	level := fs.Int("level", zipkit.DefaultLevel, "compression level (0 stores, 1-9 compress)")
	comment := fs.String("comment", "", "archive comment")
	verbose := fs.Bool("v", false, "verbose logging")
	fs.Parse(args)
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: zipkit zip [flags] archive.zip file...")
	}
	return zipkit.Zip(fs.Arg(0), fs.Args()[1:],
		zipkit.WithLevel(*level),
		zipkit.WithComment(*comment),
		zipkit.WithLogger(logger(*verbose)),
	)
}

func runUnzip(args []string) error {
	fs := flag.NewFlagSet("unzip", flag.ExitOnError)
	workers := fs.Int("workers", 1, "concurrent extractions")
	verbose := fs.Bool("v", false, "verbose logging")
	fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: zipkit unzip [flags] archive.zip destdir")
	}
	return zipkit.Unzip(fs.Arg(0), fs.Arg(1),
		zipkit.WithWorkers(*workers),
		zipkit.WithLogger(logger(*verbose)),
	)
}

func runAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	level := fs.Int("level", zipkit.DefaultLevel, "compression level (0 stores, 1-9 compress)")
	comment := fs.String("comment", "", "entry comment")
	verbose := fs.Bool("v", false, "verbose logging")
	fs.Parse(args)
	if fs.NArg() != 3 {
		return fmt.Errorf("usage: zipkit add [flags] archive.zip name file")
	}
	data, err := os.ReadFile(fs.Arg(2))
	if err != nil {
		return err
	}
	return zipkit.AddInPlace(fs.Arg(0), fs.Arg(1), data,
		zipkit.WithLevel(*level),
		zipkit.WithComment(*comment),
		zipkit.WithLogger(logger(*verbose)),
	)
}

func runStat(args []string) error {
	fs := flag.NewFlagSet("stat", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: zipkit stat archive.zip")
	}
	entries, err := zipkit.Stats(fs.Arg(0))
	if err != nil {
		return err
	}
	for i, e := range entries {
		fmt.Printf("%4d  %-8s %10d -> %10d  crc %08x  %s  %s\n",
			i, e.Method, e.UncompressedSize, e.CompressedSize,
			e.CRC32, e.Modified.Format("2006-01-02 15:04:05"), e.Name)
	}
	return nil
}
