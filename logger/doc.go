// Package logger provides structured logging capabilities.
//
// The logger package sets up the application's zap logger. Console output
// goes to stderr, which keeps stdout free for the MCP stdio transport. When
// a file is configured, entries are also written as JSON to a size-rotated
// log file.
//
// Usage:
//
//	log, err := logger.New("production", "info", "/var/log/compiler/server.log")
//	if err != nil {
//	    panic(err)
//	}
//	log.Info("Application started")
package logger
