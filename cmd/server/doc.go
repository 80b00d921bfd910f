// Package main is the entry point for the online compiler service.
//
// One binary runs any combination of the HTTP gateway, the queue worker and
// the MCP server, as selected by configuration. A typical deployment runs a
// gateway process and several worker processes sharing Redis; a development
// setup runs everything in one process with in-memory backends.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging and viper for configuration.
package main
