//go:build frio_testhooks

package frio

import "sync/atomic"

// This file provides test-only I/O hooks for the internal backend contract.
//
// Build tag:
//   - Enabled only when tests are run with: go test -tags frio_testhooks ./...
//   - Normal builds use iohooks_stub.go, which forwards directly to the backend
//     implementation with zero hook overhead.
//
// How it is called:
//   - Fetch -> worker.readOne -> readFile -> readFull -> readAt(...)
//   - The wrapper below intercepts readAt and (optionally) routes it to a test
//     hook. This allows deterministic injection of short reads, read errors and
//     slow reads without relying on filesystem quirks.
//
// Scope and safety:
//   - The hook is global to the test binary. Tests that install it MUST NOT be
//     run in parallel with other hook users.
//   - An atomic pointer is used to avoid data races with non-hooked tests.

// readAtHookFn receives the backend handle so a hook can delegate to the real
// read after inspecting or delaying the call.
type readAtHookFn func(fh fileHandle, buf []byte, off int64) (int, error)

var readAtHook atomic.Pointer[readAtHookFn]

// setReadAtHook installs a hook and returns a restore function.
//
// Usage:
//
//	restore := setReadAtHook(func(...) (int, error) { ... })
//	defer restore()
//
// Passing nil removes any previously-installed hook.
func setReadAtHook(hook readAtHookFn) func() {
	if hook == nil {
		readAtHook.Store(nil)

		return func() {}
	}

	ptr := new(readAtHookFn)
	*ptr = hook
	readAtHook.Store(ptr)

	return func() {
		readAtHook.Store(nil)
	}
}

// readAt wraps the backend implementation and optionally diverts to the test
// hook. The call signature matches the backend contract exactly.
func readAt(fh fileHandle, buf []byte, off int64) (int, error) {
	if hook := readAtHook.Load(); hook != nil {
		return (*hook)(fh, buf, off)
	}

	return fh.readAt(buf, off)
}

// Compile-time guard: wrapper signature must match the backend contract.
var _ func(fileHandle, []byte, int64) (int, error) = readAt
