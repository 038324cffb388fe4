// Package pool implements the bounded worker pool that schedules
// watermarking tasks. A fixed set of worker goroutines, each owning a private
// engine instance, consumes tasks handed out by a single scheduler goroutine.
// The scheduler owns all mutable pool state (slot table, FIFO queue, active
// count) and touches it from one goroutine only, so the bookkeeping needs no
// locks. Callers interact through single-settlement futures; batch
// submissions are remapped back into input order regardless of completion
// order.
package pool
