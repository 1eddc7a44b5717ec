// Package log provides pmlcar's structured logging facade and utilities.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. Internally it is backed by Go's
// standard library slog via a custom handler that feeds entries through a
// Formatter and one or more Outputs.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("tub"), log.Str("path", "/data/tub_1_24-05-01"))
//	l.Info("tub opened", log.Int("records", 1200))
//
// # Configuration
//
// Use ApplyConfig to build a logger from a declarative Config, supporting JSON
// or text formatting, stderr/stdout/null/file outputs and per-message sampling.
//
// # Interop
//
// RedirectStdLog routes the standard library logger (used by Pebble) through a
// Logger so storage messages share the same format.
package log
