//go:build !frio_testhooks

package frio

func readAt(fh fileHandle, buf []byte, off int64) (int, error) {
	return fh.readAt(buf, off)
}

// Compile-time guard: wrapper signature must match the backend contract.
var _ func(fileHandle, []byte, int64) (int, error) = readAt
