package frio

// ============================================================================
// Internal I/O backend contract
// ============================================================================
//
// reader.go is written against a small set of unexported, platform-specific
// functions and types (this is the internal backend contract).
//
// Implementations live in build-tagged backend files:
//   - Unix (linux, darwin, the BSDs, ...):  io_unix.go
//   - Other platforms (windows, wasm, ...): io_other.go
//
// Semantics expected by readFile:
//
//   - openFile follows symlinks and must not block on special files
//     (FIFOs are opened non-blocking where the platform allows it).
//
//   - fileHandle.size reports the size from fstat. A non-regular file may
//     report 0, in which case readFile returns an empty buffer without reading.
//
//   - fileHandle.readAt is a positional read. It returns (0, nil) at end of
//     file rather than io.EOF; readFull turns that into io.ErrUnexpectedEOF.
//     EINTR is resumed inside the backend.
//
// Thread pinning follows the same pattern (affinity_linux.go, affinity_other.go).

// Function signatures required by readFile.
var (
	_ func(string) (fileHandle, error) = openFile
	_ func() []int                     = detectCores
	_ func(int) error                  = pinCurrentThread
)

// Method set required by readFile.
// This interface is only used for compile-time checking.
type ioFileHandle interface {
	closeHandle() error
	size() (int64, error)
	readAt(buf []byte, off int64) (int, error)
}

var _ ioFileHandle = fileHandle{}
