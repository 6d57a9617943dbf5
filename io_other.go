//go:build !unix

// io_other.go implements the internal I/O backend contract (see io_contract.go)
// for platforms without a syscall-level path (windows, wasm, plan9, ...).
//
// This backend intentionally uses only portable stdlib APIs (os.Open,
// (*os.File).Stat, (*os.File).ReadAt).
package frio

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// fileHandle wraps an open *os.File.
type fileHandle struct {
	f *os.File
}

func openFile(path string) (fileHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return fileHandle{}, err
	}

	return fileHandle{f: f}, nil
}

func (f fileHandle) size() (int64, error) {
	info, err := f.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat: %w", err)
	}

	if !info.Mode().IsRegular() {
		return 0, nil
	}

	return info.Size(), nil
}

func (f fileHandle) readAt(buf []byte, off int64) (int, error) {
	n, err := f.f.ReadAt(buf, off)
	if errors.Is(err, io.EOF) {
		return n, nil
	}

	return n, err
}

func (f fileHandle) closeHandle() error {
	if f.f == nil {
		return nil
	}

	err := f.f.Close()
	if err != nil {
		return fmt.Errorf("close file: %w", err)
	}

	return nil
}
