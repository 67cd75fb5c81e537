// Package api exposes the task service over HTTP: task submission, worker
// status callbacks, cancellation, generation listing, a WebSocket event
// stream and a health probe. Handlers translate service errors into status
// codes and never leak internal error text.
package api
