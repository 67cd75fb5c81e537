// Package store defines the persistence interfaces for tasks and the
// generations derived from them, plus the sentinel errors every
// implementation returns. Implementations live under internal/platform.
package store
