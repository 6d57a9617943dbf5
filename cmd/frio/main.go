// Frio reads a list of files concurrently and prints their contents,
// checksums or sizes.
//
// Examples:
//
//	find . -type f | frio --mode sum --threads 4
//	frio -f a.bin -f b.bin --mode cat --read-size 512 > heads.bin
//	frio --list files.txt --mode cat --lz4 > bundle.lz4
//
// Paths are processed in completion order, not input order.
package main

import (
	"bufio"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/akamensky/argparse"
	"github.com/calvinalkan/frio"
	"github.com/pierrec/lz4/v4"
	"github.com/sirupsen/logrus"
)

const (
	modeCat = "cat"
	modeSum = "sum"
	modeLen = "len"

	algoCRC32  = "crc32"
	algoSHA256 = "sha256"
)

type cliArgs struct {
	files       []string
	list        string
	mode        string
	algo        string
	readSize    int
	threads     int
	concurrency int
	lz4         bool
	noPin       bool
	verbose     bool
}

func main() {
	args, usage, err := parseArgs(os.Args)
	if err != nil {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)

	if args.verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	os.Exit(run(ctx, args, os.Stdin, os.Stdout, log))
}

func parseArgs(argv []string) (*cliArgs, string, error) {
	parser := argparse.NewParser("frio", "Read many files concurrently")

	files := parser.StringList("f", "file", &argparse.Options{Help: "File to read (repeatable)"})
	list := parser.String("l", "list", &argparse.Options{Help: "File with one path per line (- for stdin). Default: stdin when no --file is given"})
	mode := parser.Selector("m", "mode", []string{modeCat, modeSum, modeLen}, &argparse.Options{Help: "Output mode", Default: modeLen})
	algo := parser.Selector("a", "algo", []string{algoCRC32, algoSHA256}, &argparse.Options{Help: "Checksum for --mode sum", Default: algoCRC32})
	readSize := parser.Int("s", "read-size", &argparse.Options{Help: "Read at most this many bytes per file (0 = whole file)", Default: 0})
	threads := parser.Int("t", "threads", &argparse.Options{Help: "Worker threads", Default: 1})
	concurrency := parser.Int("c", "concurrency", &argparse.Options{Help: "In-flight reads per thread (0 = default)", Default: 0})
	useLZ4 := parser.Flag("z", "lz4", &argparse.Options{Help: "Compress --mode cat output as an LZ4 frame"})
	noPin := parser.Flag("n", "no-pin", &argparse.Options{Help: "Do not pin worker threads to CPU cores"})
	verbose := parser.Flag("v", "verbose", &argparse.Options{Help: "Debug logging to stderr"})

	err := parser.Parse(argv)
	if err != nil {
		return nil, parser.Usage(err), err
	}

	if *readSize < 0 {
		err = errors.New("--read-size must be >= 0")

		return nil, parser.Usage(err), err
	}

	return &cliArgs{
		files:       *files,
		list:        *list,
		mode:        *mode,
		algo:        *algo,
		readSize:    *readSize,
		threads:     *threads,
		concurrency: *concurrency,
		lz4:         *useLZ4,
		noPin:       *noPin,
		verbose:     *verbose,
	}, "", nil
}

func run(ctx context.Context, args *cliArgs, stdin io.Reader, stdout io.Writer, log *logrus.Logger) int {
	paths, err := collectPaths(args, stdin)
	if err != nil {
		log.WithError(err).Error("reading path list")

		return 2
	}

	if len(paths) == 0 {
		log.Warn("no paths given")

		return 0
	}

	opts := []frio.Option{
		frio.WithReadSize(int64(args.readSize)),
		frio.WithWorkers(args.threads),
		frio.WithConcurrency(args.concurrency),
		frio.WithLogger(log),
	}

	if args.noPin {
		opts = append(opts, frio.WithoutPinning())
	}

	out := bufio.NewWriterSize(stdout, 256*1024)

	var (
		w  io.Writer = out
		zw *lz4.Writer
	)

	if args.mode == modeCat && args.lz4 {
		zw = lz4.NewWriter(out)
		w = zw
	}

	it := frio.Fetch(ctx, paths, opts...)
	defer it.Close()

	var (
		failed  int
		stopped bool
	)

	for res, err := range it.All() {
		if errors.Is(err, frio.ErrInterrupted) {
			log.WithError(err).Warn("stopped")

			stopped = true

			break
		}

		if err != nil {
			failed++

			log.WithError(err).WithField("path", res.Path).Error("read failed")

			continue
		}

		writeErr := emit(w, args, res)
		if writeErr != nil {
			log.WithError(writeErr).Error("writing output")

			return 1
		}
	}

	// Workers stop early on cancellation, so the loop can also end without
	// an interrupt error.
	if !stopped && ctx.Err() != nil {
		log.WithError(context.Cause(ctx)).Warn("stopped")

		stopped = true
	}

	// Output already emitted is kept when stopping early.
	err = finish(zw, out)
	if err != nil {
		log.WithError(err).Error("writing output")

		return 1
	}

	stats := it.Stats()
	log.WithFields(logrus.Fields{
		"files":  stats.Files,
		"failed": stats.Failed,
		"bytes":  stats.Bytes,
	}).Debug("done")

	if stopped || failed > 0 {
		return 1
	}

	return 0
}

// finish ends the lz4 frame, if any, and flushes buffered output.
func finish(zw *lz4.Writer, out *bufio.Writer) error {
	if zw != nil {
		err := zw.Close()
		if err != nil {
			return fmt.Errorf("closing lz4 stream: %w", err)
		}
	}

	err := out.Flush()
	if err != nil {
		return fmt.Errorf("flushing output: %w", err)
	}

	return nil
}

func emit(w io.Writer, args *cliArgs, res frio.Result) error {
	var err error

	switch args.mode {
	case modeCat:
		_, err = w.Write(res.Data)
	case modeSum:
		_, err = fmt.Fprintf(w, "%s  %s\n", checksum(args.algo, res.Data), res.Path)
	default:
		_, err = fmt.Fprintf(w, "%d\t%s\n", len(res.Data), res.Path)
	}

	if err != nil {
		return fmt.Errorf("write %s: %w", res.Path, err)
	}

	return nil
}

func checksum(algo string, data []byte) string {
	if algo == algoSHA256 {
		sum := sha256.Sum256(data)

		return fmt.Sprintf("%x", sum[:])
	}

	return fmt.Sprintf("%08x", crc32.ChecksumIEEE(data))
}

// collectPaths merges --file values with lines read from --list (or stdin
// when neither is given). Blank lines are skipped.
func collectPaths(args *cliArgs, stdin io.Reader) ([]string, error) {
	paths := append([]string(nil), args.files...)

	src := args.list
	if src == "" && len(paths) == 0 {
		src = "-"
	}

	if src == "" {
		return paths, nil
	}

	var r io.Reader = stdin

	if src != "-" {
		f, err := os.Open(src)
		if err != nil {
			return nil, fmt.Errorf("open list: %w", err)
		}

		defer func() { _ = f.Close() }()

		r = f
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		paths = append(paths, line)
	}

	err := sc.Err()
	if err != nil {
		return nil, fmt.Errorf("read list: %w", err)
	}

	return paths, nil
}
