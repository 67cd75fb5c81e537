// Package domain defines tasks, their status lifecycle and the generations
// derived from completed tasks, together with the validation and conflict
// errors the rest of the application matches on.
package domain
