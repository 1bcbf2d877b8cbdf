// Package logging provides file-based logging with rotation for wb-grep.
// Structured JSON logs are written to ~/.wb-grep/logs/ and to stderr.
//
// By default the level is info; the --debug flag lowers it to debug.
package logging
