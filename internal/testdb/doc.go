// Package testdb provides PostgreSQL databases for integration tests.
//
// A test gets a migrated database either from REIGH_TEST_DATABASE_URL (or
// DATABASE_URL) or, when neither is set, from a disposable testcontainers
// instance. Outside CI a missing Docker daemon skips the test; in CI it fails.
package testdb
