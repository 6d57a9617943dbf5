//go:build unix

package frio_test

import (
	"syscall"
	"testing"
)

func mkfifo(_ *testing.T, path string, mode uint32) error {
	return syscall.Mkfifo(path, mode)
}

func chmod(path string, mode uint32) error {
	return syscall.Chmod(path, mode)
}

func canOpen(path string) bool {
	fd, err := syscall.Open(path, syscall.O_RDONLY, 0)
	if err != nil {
		return false
	}

	_ = syscall.Close(fd)

	return true
}
