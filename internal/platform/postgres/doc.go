// Package postgres provides the PostgreSQL implementations of the task and
// generation stores defined in internal/store, along with the embedded schema
// migrations they depend on.
package postgres
