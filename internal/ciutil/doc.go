// Package ciutil detects the execution environment (CI or a developer
// machine) and resolves the environment variables test infrastructure reads,
// so integration tests behave the same way under every CI provider.
package ciutil
