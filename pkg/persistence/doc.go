// Package persistence keeps the stopwatch across process restarts.
//
// The stopwatch is written as a small JSON document after every change and
// read back once at startup. Writes happen off the engine's critical path:
// the Saver coalesces bursts of changes so only the most recent snapshot
// reaches the disk.
package persistence
