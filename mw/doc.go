// Package mw holds the standard middleware for jsgi dispatchers: error and not-found pages,
// conditional GET, compression, static files, request ids, logging and metrics.
package mw
