// Package textutil provides filename sanitization helpers.
//
// SanitizeFileName rewrites names that would be unsafe to create on disk.
// Workspace names are validated against it: a name that sanitization would
// change is rejected rather than silently rewritten.
package textutil
