package frio_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/calvinalkan/frio"
)

const (
	testNumFilesMed = 300
	testMissingFile = "missing.txt"
	openOp          = "open"
	readOp          = "read"
	drainTimeout    = 10 * time.Second
)

func writeFile(t *testing.T, root, rel string, data []byte) string {
	t.Helper()

	fullPath := filepath.Join(root, rel)
	parent := filepath.Dir(fullPath)

	err := os.MkdirAll(parent, 0o750)
	if err != nil {
		t.Fatalf("mkdir %s: %v", parent, err)
	}

	err = os.WriteFile(fullPath, data, 0o600)
	if err != nil {
		t.Fatalf("write %s: %v", fullPath, err)
	}

	return fullPath
}

// writeFiles writes every file and returns their full paths, sorted.
func writeFiles(t *testing.T, root string, files map[string][]byte) []string {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}

	sort.Strings(names)

	paths := make([]string, 0, len(names))
	for _, name := range names {
		paths = append(paths, writeFile(t, root, name, files[name]))
	}

	return paths
}

// seqBytes returns n bytes 0x00, 0x01, ... (wrapping at 256).
func seqBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}

	return b
}

// collected holds everything an iterator yielded until io.EOF.
type collected struct {
	data map[string][]byte
	errs map[string]error
	// order is the arrival order of every path (successes and failures).
	order []string
	// terminal is a non-item error (e.g. ErrInterrupted), if any.
	terminal error
}

// drain calls Next until io.EOF or a terminal error, failing the test if that
// takes longer than drainTimeout or if a path is reported twice.
func drain(t *testing.T, it *frio.Iterator) collected {
	t.Helper()

	out := collected{
		data: make(map[string][]byte),
		errs: make(map[string]error),
	}

	deadline := time.Now().Add(drainTimeout)

	for {
		if time.Now().After(deadline) {
			t.Fatal("iterator did not finish in time (possible deadlock)")
		}

		res, err := it.Next()
		if err == io.EOF {
			return out
		}

		if errors.Is(err, frio.ErrInterrupted) {
			out.terminal = err

			return out
		}

		_, seenOK := out.data[res.Path]
		_, seenErr := out.errs[res.Path]

		if seenOK || seenErr {
			t.Fatalf("duplicate outcome for %q", res.Path)
		}

		out.order = append(out.order, res.Path)

		if err != nil {
			out.errs[res.Path] = err

			continue
		}

		out.data[res.Path] = res.Data
	}
}

func assertIOError(t *testing.T, err error, path, op string) {
	t.Helper()

	var ioErr *frio.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected *frio.IOError, got %T: %v", err, err)
	}

	if ioErr.Path != path {
		t.Fatalf("IOError.Path: got=%q want=%q", ioErr.Path, path)
	}

	if ioErr.Op != op {
		t.Fatalf("IOError.Op: got=%q want=%q", ioErr.Op, op)
	}
}

func assertData(t *testing.T, got collected, path string, want []byte) {
	t.Helper()

	data, ok := got.data[path]
	if !ok {
		t.Fatalf("no result for %q (errs=%v)", path, got.errs)
	}

	if data == nil {
		t.Fatalf("result for %q has nil Data, want non-nil", path)
	}

	if !bytes.Equal(data, want) {
		t.Fatalf("data for %q: got=%q want=%q", path, data, want)
	}
}

func assertStringSlicesEqual(t *testing.T, got, want []string) {
	t.Helper()

	gotSorted := append([]string(nil), got...)
	wantSorted := append([]string(nil), want...)

	sort.Strings(gotSorted)
	sort.Strings(wantSorted)

	if len(gotSorted) != len(wantSorted) {
		t.Fatalf("slice length mismatch: got=%d want=%d (got=%v want=%v)", len(gotSorted), len(wantSorted), gotSorted, wantSorted)
	}

	for i := range gotSorted {
		if gotSorted[i] != wantSorted[i] {
			t.Fatalf("slice mismatch at %d: got=%v want=%v", i, gotSorted, wantSorted)
		}
	}
}
