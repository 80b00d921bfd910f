// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package exposes the execution pipeline to MCP clients through
// the execute_code tool. Unlike the HTTP gateway, which queues submissions,
// the tool runs a submission synchronously and returns its result as JSON.
// The result is still stored and published like any other, so it can also be
// polled through the gateway.
//
// The server supports both stdio and HTTP transports as configured by the
// application configuration.
//
// Usage:
//
//	server, err := mcpserver.New(config, logger, dispatcher)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio() // or server.ServeHTTP()
package mcpserver
