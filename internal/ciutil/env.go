package ciutil

import (
	"log/slog"
	"os"

	"github.com/reigh-app/reigh-api/internal/redact"
)

// Environment variable names used across the codebase.
const (
	// CI environment detection variables
	EnvCI            = "CI"
	EnvGitHubActions = "GITHUB_ACTIONS"
	EnvGitLabCI      = "GITLAB_CI"
	EnvJenkinsURL    = "JENKINS_URL"
	EnvCircleCI      = "CIRCLECI"

	// Database connection environment variables
	EnvTestDatabaseURL = "REIGH_TEST_DATABASE_URL" // Preferred name
	EnvDatabaseURL     = "DATABASE_URL"

	// Redis connection environment variables
	EnvTestRedisURL = "REIGH_TEST_REDIS_URL"
)

// IsCI returns true if the current environment is a CI environment.
// It checks for common CI environment variables across different CI providers.
func IsCI() bool {
	return os.Getenv(EnvCI) != "" ||
		os.Getenv(EnvGitHubActions) != "" ||
		os.Getenv(EnvGitLabCI) != "" ||
		os.Getenv(EnvJenkinsURL) != "" ||
		os.Getenv(EnvCircleCI) != ""
}

// GetEnvWithFallbacks returns the value of the first non-empty environment variable
// from the provided list. If no environment variables are set, it returns the defaultValue.
// Using anything but the first name is logged, with the value redacted.
func GetEnvWithFallbacks(envVars []string, defaultValue string, logger *slog.Logger) string {
	for i, envVar := range envVars {
		if val := os.Getenv(envVar); val != "" {
			if i > 0 && logger != nil {
				logger.Warn("Using fallback environment variable",
					"used_var", envVar,
					"preferred_var", envVars[0],
					"value", redact.String(val),
				)
			}
			return val
		}
	}
	return defaultValue
}

// TestDatabaseURL returns the externally provided database for integration
// tests, or "" when tests should start their own.
func TestDatabaseURL(logger *slog.Logger) string {
	return GetEnvWithFallbacks([]string{EnvTestDatabaseURL, EnvDatabaseURL}, "", logger)
}

// TestRedisURL returns the externally provided Redis for integration tests,
// or "" when tests should start their own.
func TestRedisURL() string {
	return os.Getenv(EnvTestRedisURL)
}
