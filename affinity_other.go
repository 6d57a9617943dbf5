//go:build !linux

// affinity_other.go is the fallback for platforms without a thread affinity
// API reachable from pure Go. Workers run unpinned.
package frio

import "errors"

var errAffinityUnsupported = errors.New("pin: thread affinity not supported on this platform")

// detectCores returns nil: no core list means no pinning.
func detectCores() []int {
	return nil
}

func pinCurrentThread(int) error {
	return errAffinityUnsupported
}
