// Package logx wraps zerolog behind a small structured-logging API with
// hot-swappable console and file sinks.
package logx
