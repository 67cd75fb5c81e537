// Package task implements the task lifecycle engine: the status state
// machine, dependency cascades, completion post-processing and the service
// that ties them to the stores and the event publisher.
//
// Side effects that follow a status change (cascading a failure to dependent
// tasks, deriving generations from a completed task) run on a bounded
// background Dispatcher so request handlers return as soon as the triggering
// write is stored.
package task
