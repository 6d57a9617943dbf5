package frio

import (
	"fmt"
	"io"
	"math"
)

// readFile reads the first limit bytes of path, or the whole file when limit
// is 0 or not smaller than the file size.
//
// Failures are returned as *IOError with Op "open" (the file could not be
// opened) or "read" (stat or read failed after a successful open). A file
// that is shorter than its stat size at read time is a read failure
// (io.ErrUnexpectedEOF). There are no retries.
func readFile(path string, limit int64) ([]byte, error) {
	fh, err := openFile(path)
	if err != nil {
		return nil, &IOError{Path: path, Op: opOpen, Err: err}
	}

	// The data is complete once readFull returns; a close error changes nothing.
	defer func() { _ = fh.closeHandle() }()

	size, err := fh.size()
	if err != nil {
		return nil, &IOError{Path: path, Op: opRead, Err: err}
	}

	n := size
	if limit > 0 && limit < size {
		n = limit
	}

	if n <= 0 {
		return []byte{}, nil
	}

	if uint64(n) > math.MaxInt {
		return nil, &IOError{Path: path, Op: opRead, Err: ErrFileTooLarge}
	}

	buf := make([]byte, n)

	err = readFull(fh, buf)
	if err != nil {
		return nil, &IOError{Path: path, Op: opRead, Err: err}
	}

	return buf, nil
}

// readFull fills buf with the bytes at offset 0 of fh.
// Hitting end of file before buf is full returns io.ErrUnexpectedEOF.
func readFull(fh fileHandle, buf []byte) error {
	off := 0
	for off < len(buf) {
		n, err := readAt(fh, buf[off:], int64(off))
		off += n

		if err != nil {
			return fmt.Errorf("pread at %d: %w", off, err)
		}

		if n == 0 {
			return io.ErrUnexpectedEOF
		}
	}

	return nil
}
