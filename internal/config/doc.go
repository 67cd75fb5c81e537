// Package config loads the server settings from an optional config.yaml and
// REIGH_-prefixed environment variables, applies defaults and validates the
// result before anything is wired.
package config
