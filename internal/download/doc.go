// Package download schedules XDCC pack requests for one packlist.
//
// A Manager owns a FIFO queue of awaiting tasks, a map of ongoing tasks keyed
// by filename, and a single worker goroutine. The worker takes tasks in
// order, acquires one of MaxConcurrent slots from a weighted semaphore and
// asks the Commander to request the pack. Slots come back exactly once, when
// the transfer completes or is aborted.
//
// Transfer events arrive from the chat client with whatever filename the
// bot chose, which is not always the catalogued one. Lookup therefore falls
// back from the exact key to the outstanding list request (by marker) and
// finally to packlist.SameRelease, and rekeys the task once an offer reveals
// the real name.
//
// The worker follows an explicit state machine (see WorkerState); it goes
// idle after IdleTimeout without work and is restarted by Start.
package download
