// Package watcher provides a debounced fsnotify wrapper for wb-grep.
// Creates and writes are coalesced into batches on a fixed debounce
// window; removes and renames are reported immediately since deletion
// does not need coalescing with later edits.
package watcher
