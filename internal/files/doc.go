// Package files discovers the files the stress test reads and writes.
//
// Discovery lists files in a directory by extension. Scan combines it with
// the configured paths into an Inventory: which raw downloads are present,
// whether the processed macro history exists, and which reports have been
// written to the output directory.
package files
