// Friobench measures bulk read throughput over a directory tree.
//
// It scans -root, orders the files (by inode, or shuffled), then reads them
// with either the frio library or a naive goroutine pool, stopping early once
// -duration has elapsed. The last line of output has the form
//
//	RESULT|backend|threads|shuffle|MB/s|files/s
//
// and -o appends the full result as one JSON line.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"time"

	"github.com/akamensky/argparse"
	"github.com/calvinalkan/frio"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	backendFrio  = "frio"
	backendNaive = "naive"
)

type benchResult struct {
	Timestamp time.Time `json:"ts"`

	Root      string   `json:"root"`
	Backend   string   `json:"backend"`
	Threads   int      `json:"threads"`
	Shuffle   bool     `json:"shuffle"`
	ReadSize  int      `json:"read_size"`
	Blacklist []string `json:"blacklist,omitempty"`

	Scanned     int           `json:"scanned"`
	Files       uint64        `json:"files"`
	Errors      uint64        `json:"errors"`
	BytesTotal  uint64        `json:"bytes_total"`
	Duration    time.Duration `json:"duration"`
	TimedOut    bool          `json:"timed_out"`
	MBPerSec    float64       `json:"mb_per_sec"`
	FilesPerSec float64       `json:"files_per_sec"`

	GoVersion  string `json:"go"`
	GOOS       string `json:"goos"`
	GOARCH     string `json:"goarch"`
	GOMAXPROCS int    `json:"gomaxprocs"`
	NumCPU     int    `json:"numcpu"`
}

type benchArgs struct {
	root      string
	backend   string
	threads   int
	duration  time.Duration
	shuffle   bool
	readSize  int
	blacklist []string
	out       string
	verbose   bool
}

// totals is what a backend reports back after a run.
type totals struct {
	files    uint64
	errors   uint64
	bytes    uint64
	timedOut bool
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

	os.Exit(run(context.Background(), args, os.Stdout, log))
}

func parseArgs(argv []string) (*benchArgs, string, error) {
	parser := argparse.NewParser("friobench", "Benchmark bulk file reads")

	root := parser.String("r", "root", &argparse.Options{Required: true, Help: "Root directory to scan"})
	backend := parser.Selector("b", "backend", []string{backendFrio, backendNaive}, &argparse.Options{Help: "Reader backend", Default: backendFrio})
	threads := parser.Int("t", "threads", &argparse.Options{Help: "Number of threads", Default: 1})
	duration := parser.Int("d", "duration", &argparse.Options{Help: "Max duration in seconds", Default: 10})
	shuffle := parser.Flag("s", "shuffle", &argparse.Options{Help: "Randomize file order instead of sorting by inode"})
	readSize := parser.Int("c", "read-size", &argparse.Options{Help: "Read size per file (0 for all)", Default: 0})
	blacklist := parser.StringList("x", "blacklist", &argparse.Options{Help: "Glob pattern of names to ignore (repeatable)"})
	out := parser.String("o", "out", &argparse.Options{Help: "Append one JSON result line to this file"})
	verbose := parser.Flag("v", "verbose", &argparse.Options{Help: "Debug logging to stderr"})

	err := parser.Parse(argv)
	if err != nil {
		return nil, parser.Usage(err), err
	}

	switch {
	case *threads < 1:
		err = errors.New("--threads must be >= 1")
	case *duration < 1:
		err = errors.New("--duration must be >= 1")
	case *readSize < 0:
		err = errors.New("--read-size must be >= 0")
	}

	if err == nil {
		for _, pattern := range *blacklist {
			_, matchErr := filepath.Match(pattern, "")
			if matchErr != nil {
				err = fmt.Errorf("--blacklist %q: %w", pattern, matchErr)

				break
			}
		}
	}

	if err != nil {
		return nil, parser.Usage(err), err
	}

	return &benchArgs{
		root:      *root,
		backend:   *backend,
		threads:   *threads,
		duration:  time.Duration(*duration) * time.Second,
		shuffle:   *shuffle,
		readSize:  *readSize,
		blacklist: *blacklist,
		out:       *out,
		verbose:   *verbose,
	}, "", nil
}

func run(ctx context.Context, args *benchArgs, stdout io.Writer, log *logrus.Logger) int {
	log.WithField("root", args.root).Info("scanning")

	files, err := scanDir(args.root, args.blacklist, args.shuffle)
	if err != nil {
		log.WithError(err).Error("scan failed")

		return 1
	}

	log.WithField("files", len(files)).Info("scan finished")

	if len(files) == 0 {
		fmt.Fprintln(stdout, "No files found!")

		return 0
	}

	start := time.Now()

	var t totals

	switch args.backend {
	case backendNaive:
		t = readNaive(ctx, files, args, start, log)
	default:
		t = readFrio(ctx, files, args, start, log)
	}

	elapsed := time.Since(start)
	secs := max(elapsed.Seconds(), 1e-9)

	res := benchResult{
		Timestamp:   time.Now(),
		Root:        args.root,
		Backend:     args.backend,
		Threads:     args.threads,
		Shuffle:     args.shuffle,
		ReadSize:    args.readSize,
		Blacklist:   args.blacklist,
		Scanned:     len(files),
		Files:       t.files,
		Errors:      t.errors,
		BytesTotal:  t.bytes,
		Duration:    elapsed,
		TimedOut:    t.timedOut,
		MBPerSec:    float64(t.bytes) / 1024 / 1024 / secs,
		FilesPerSec: float64(t.files) / secs,
		GOOS:        runtime.GOOS,
		GOARCH:      runtime.GOARCH,
		GOMAXPROCS:  runtime.GOMAXPROCS(0),
		NumCPU:      runtime.NumCPU(),
	}

	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		res.GoVersion = bi.GoVersion
	}

	if args.out != "" {
		err = appendJSONL(args.out, &res)
		if err != nil {
			log.WithError(err).Error("writing --out")

			return 1
		}
	}

	fmt.Fprintf(stdout, "\nRESULT|%s|%d|%t|%.2f|%.2f\n",
		res.Backend, res.Threads, res.Shuffle, res.MBPerSec, res.FilesPerSec)

	return 0
}

// scanDir lists regular files below root, skipping any file or directory
// whose name matches a blacklist glob. Symlinks are not followed. The result
// is sorted by inode (path on ties and on platforms without inodes) unless
// shuffle is set.
func scanDir(root string, blacklist []string, shuffle bool) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("abs %s: %w", root, err)
	}

	type entry struct {
		path  string
		inode uint64
	}

	var entries []entry

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if path != root && ignored(d.Name(), blacklist) {
			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		entries = append(entries, entry{path: path, inode: inodeOf(info)})

		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk %s: %w", root, walkErr)
	}

	if shuffle {
		rand.Shuffle(len(entries), func(i, j int) { entries[i], entries[j] = entries[j], entries[i] })
	} else {
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].inode != entries[j].inode {
				return entries[i].inode < entries[j].inode
			}

			return entries[i].path < entries[j].path
		})
	}

	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.path
	}

	return paths, nil
}

func ignored(name string, blacklist []string) bool {
	for _, pattern := range blacklist {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}

	return false
}

func readFrio(ctx context.Context, files []string, args *benchArgs, start time.Time, log *logrus.Logger) totals {
	it := frio.Fetch(ctx, files,
		frio.WithReadSize(int64(args.readSize)),
		frio.WithWorkers(args.threads),
		frio.WithLogger(log),
	)
	defer it.Close()

	var t totals

	for res, err := range it.All() {
		if errors.Is(err, frio.ErrInterrupted) {
			log.WithError(err).Warn("stopped")

			break
		}

		if err != nil {
			t.errors++

			log.WithError(err).Debug("read failed")
		} else {
			t.files++
			t.bytes += uint64(len(res.Data))
		}

		if time.Since(start) > args.duration {
			t.timedOut = true

			break
		}
	}

	return t
}

// readNaive reads files with a fixed pool of goroutines doing plain
// open+read, as a baseline for the frio backend.
func readNaive(ctx context.Context, files []string, args *benchArgs, start time.Time, log *logrus.Logger) totals {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		n   int
		err error
	}

	jobs := make(chan string)
	results := make(chan outcome, args.threads)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)

		for _, p := range files {
			select {
			case jobs <- p:
			case <-gctx.Done():
				return nil
			}
		}

		return nil
	})

	for range args.threads {
		g.Go(func() error {
			for p := range jobs {
				n, err := readPlain(p, args.readSize)

				select {
				case results <- outcome{n, err}:
				case <-gctx.Done():
					return nil
				}
			}

			return nil
		})
	}

	go func() {
		_ = g.Wait()

		close(results)
	}()

	var t totals

	for o := range results {
		if o.err != nil {
			t.errors++

			log.WithError(o.err).Debug("read failed")
		} else {
			t.files++
			t.bytes += uint64(o.n)
		}

		if time.Since(start) > args.duration {
			t.timedOut = true

			cancel()

			break
		}
	}

	return t
}

func readPlain(path string, readSize int) (int, error) {
	if readSize == 0 {
		data, err := os.ReadFile(path)
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", path, err)
		}

		return len(data), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}

	defer func() { _ = f.Close() }()

	buf := make([]byte, readSize)

	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("read %s: %w", path, err)
	}

	return n, nil
}

func appendJSONL(path string, res *benchResult) error {
	outFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}

	defer func() { _ = outFile.Close() }()

	writer := bufio.NewWriter(outFile)
	enc := json.NewEncoder(writer)
	enc.SetEscapeHTML(false)

	err = enc.Encode(res)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	err = writer.Flush()
	if err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}
