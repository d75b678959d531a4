// Package testutil provides shared helpers for tests: instrumented wrappers
// around the storage interfaces and a call-counting completer.
package testutil
