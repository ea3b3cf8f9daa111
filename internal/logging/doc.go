// Package logging configures structured slog output for docrag.
//
// Logs are JSON lines. With a file path set, they go to a size-rotated file
// under the data directory; otherwise they go to stderr only.
package logging
