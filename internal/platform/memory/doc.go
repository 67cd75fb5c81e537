// Package memory provides in-process implementations of the store
// interfaces. They back the server when database.driver is "memory" and are
// used by unit tests throughout the module. Every method hands out copies, so
// callers never share state with the store.
package memory
