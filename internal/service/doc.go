// Package service orchestrates the job lifecycle around the worker pool: it
// persists a job record for every submission, dispatches the work, settles
// the record from the task's outcome, and publishes status events for SSE
// subscribers.
package service
