//go:build unix

// io_unix.go implements the internal I/O backend contract (see io_contract.go)
// for Unix platforms using raw file descriptors and pread.
package frio

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// fileHandle wraps an open file descriptor.
type fileHandle struct {
	fd int
}

// openFile opens path read-only.
//
// O_NONBLOCK keeps FIFOs without a writer from blocking the worker; it has no
// effect on regular files.
func openFile(path string) (fileHandle, error) {
	for {
		fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
		if err == syscall.EINTR {
			continue
		}

		if err != nil {
			return fileHandle{fd: -1}, err
		}

		return fileHandle{fd: fd}, nil
	}
}

func (f fileHandle) size() (int64, error) {
	var st unix.Stat_t
	for {
		err := unix.Fstat(f.fd, &st)
		if err == syscall.EINTR {
			continue
		}

		if err != nil {
			return 0, fmt.Errorf("fstat: %w", err)
		}

		break
	}

	return st.Size, nil
}

func (f fileHandle) readAt(buf []byte, off int64) (int, error) {
	for {
		n, err := unix.Pread(f.fd, buf, off)
		if err == syscall.EINTR {
			continue
		}

		if err != nil {
			return 0, err
		}

		return n, nil
	}
}

func (f fileHandle) closeHandle() error {
	if f.fd < 0 {
		return nil
	}

	err := unix.Close(f.fd)
	if err != nil {
		return fmt.Errorf("close file: %w", err)
	}

	return nil
}
