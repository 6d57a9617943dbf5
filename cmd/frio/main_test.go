package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/pierrec/lz4/v4"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func writeFile(t *testing.T, root, name string, data []byte) string {
	t.Helper()

	p := filepath.Join(root, name)

	err := os.WriteFile(p, data, 0o600)
	if err != nil {
		t.Fatalf("write %s: %v", p, err)
	}

	return p
}

func sortedLines(s string) []string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	sort.Strings(lines)

	return lines
}

func quietLogger() (*logrus.Logger, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	return log, hook
}

func Test_Run_Prints_Sizes_When_Mode_Is_Len(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	a := writeFile(t, root, "a.txt", []byte("alpha"))
	b := writeFile(t, root, "b.txt", []byte("bravo!"))

	args := &cliArgs{files: []string{a, b}, mode: modeLen, threads: 2}

	var out bytes.Buffer

	log, _ := quietLogger()

	code := run(context.Background(), args, strings.NewReader(""), &out, log)
	if code != 0 {
		t.Fatalf("exit code: got=%d want=0", code)
	}

	got := sortedLines(out.String())
	want := []string{"5\t" + a, "6\t" + b}

	sort.Strings(want)

	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("output: got=%q want=%q", got, want)
	}
}

func Test_Run_Prints_Checksums_When_Mode_Is_Sum(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	a := writeFile(t, root, "a.txt", []byte("hello"))

	var out bytes.Buffer

	log, _ := quietLogger()

	code := run(context.Background(), &cliArgs{files: []string{a}, mode: modeSum, algo: algoCRC32}, nil, &out, log)
	if code != 0 {
		t.Fatalf("exit code: got=%d want=0", code)
	}

	if want := "3610a686  " + a + "\n"; out.String() != want {
		t.Fatalf("crc32 output: got=%q want=%q", out.String(), want)
	}

	out.Reset()

	code = run(context.Background(), &cliArgs{files: []string{a}, mode: modeSum, algo: algoSHA256}, nil, &out, log)
	if code != 0 {
		t.Fatalf("exit code: got=%d want=0", code)
	}

	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824  " + a + "\n"
	if out.String() != want {
		t.Fatalf("sha256 output: got=%q want=%q", out.String(), want)
	}
}

func Test_Run_Writes_LZ4_Frame_When_Cat_Uses_LZ4(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	content := bytes.Repeat([]byte("frio "), 1000)
	a := writeFile(t, root, "a.txt", content)

	var out bytes.Buffer

	log, _ := quietLogger()

	code := run(context.Background(), &cliArgs{files: []string{a}, mode: modeCat, lz4: true, readSize: 100}, nil, &out, log)
	if code != 0 {
		t.Fatalf("exit code: got=%d want=0", code)
	}

	plain, err := io.ReadAll(lz4.NewReader(&out))
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}

	if !bytes.Equal(plain, content[:100]) {
		t.Fatalf("decompressed output: got=%q want=%q", plain, content[:100])
	}
}

func Test_Run_Reads_Paths_From_Stdin_And_Fails_On_Missing_Files(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	a := writeFile(t, root, "a.txt", []byte("a"))
	missing := filepath.Join(root, "missing.txt")

	stdin := strings.NewReader(a + "\n\n" + missing + "\r\n")

	var out bytes.Buffer

	log, hook := quietLogger()

	code := run(context.Background(), &cliArgs{mode: modeLen}, stdin, &out, log)
	if code != 1 {
		t.Fatalf("exit code: got=%d want=1", code)
	}

	if want := "1\t" + a + "\n"; out.String() != want {
		t.Fatalf("output: got=%q want=%q", out.String(), want)
	}

	var failed int

	for _, e := range hook.AllEntries() {
		if e.Message == "read failed" && e.Data["path"] == missing {
			failed++
		}
	}

	if failed != 1 {
		t.Fatalf("expected one read failed log entry for %q, got %d", missing, failed)
	}
}

func Test_ParseArgs_Rejects_Negative_Read_Size(t *testing.T) {
	t.Parallel()

	_, usage, err := parseArgs([]string{"frio", "--read-size", "-1"})
	if err == nil {
		t.Fatal("expected error")
	}

	if usage == "" {
		t.Fatal("expected usage text")
	}
}

func Test_ParseArgs_Collects_Repeated_Files(t *testing.T) {
	t.Parallel()

	args, _, err := parseArgs([]string{"frio", "-f", "a", "-f", "b", "-m", "sum", "-t", "3"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(args.files) != 2 || args.files[0] != "a" || args.files[1] != "b" {
		t.Fatalf("files: got=%v", args.files)
	}

	if args.mode != modeSum || args.threads != 3 || args.algo != algoCRC32 {
		t.Fatalf("unexpected args: %+v", args)
	}
}

// cancelOnRead cancels a context once the library logs a finished read of
// path.
type cancelOnRead struct {
	path   string
	cancel context.CancelFunc
}

func (h *cancelOnRead) Levels() []logrus.Level { return logrus.AllLevels }

func (h *cancelOnRead) Fire(e *logrus.Entry) error {
	if e.Message == "read done" && e.Data["path"] == h.path {
		h.cancel()
	}

	return nil
}

// runCancelledDuringThirdRead reads a, b, c on one lane in that order and
// cancels while c is being sent. a and b are always delivered first.
func runCancelledDuringThirdRead(t *testing.T, args *cliArgs) (int, []byte, string, string) {
	t.Helper()

	root := t.TempDir()
	a := writeFile(t, root, "a.txt", []byte("a"))
	b := writeFile(t, root, "b.txt", []byte("b"))
	c := writeFile(t, root, "c.txt", []byte("c"))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	log, _ := test.NewNullLogger()
	log.SetLevel(logrus.TraceLevel)
	log.AddHook(&cancelOnRead{path: c, cancel: cancel})

	args.files = []string{a, b, c}
	args.threads = 1
	args.concurrency = 1
	args.noPin = true

	var out bytes.Buffer

	code := run(ctx, args, nil, &out, log)

	return code, out.Bytes(), a, b
}

func Test_Run_Flushes_Emitted_Rows_When_Stopped_Early(t *testing.T) {
	t.Parallel()

	code, out, a, b := runCancelledDuringThirdRead(t, &cliArgs{mode: modeLen})
	if code != 1 {
		t.Fatalf("exit code: got=%d want=1", code)
	}

	want := "1\t" + a + "\n1\t" + b + "\n"
	if !strings.HasPrefix(string(out), want) {
		t.Fatalf("output: got=%q want prefix %q", out, want)
	}
}

func Test_Run_Ends_LZ4_Frame_When_Stopped_Early(t *testing.T) {
	t.Parallel()

	code, out, _, _ := runCancelledDuringThirdRead(t, &cliArgs{mode: modeCat, lz4: true})
	if code != 1 {
		t.Fatalf("exit code: got=%d want=1", code)
	}

	plain, err := io.ReadAll(lz4.NewReader(bytes.NewReader(out)))
	if err != nil {
		t.Fatalf("decompress truncated stream: %v", err)
	}

	if !strings.HasPrefix(string(plain), "ab") {
		t.Fatalf("decompressed output: got=%q want prefix %q", plain, "ab")
	}
}
