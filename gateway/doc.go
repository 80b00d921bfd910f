// Package gateway is the HTTP front door of the service.
//
// Routes:
//
//	GET  /            health message
//	POST /execute     submit {"language" | "language_id", "source_code"}; returns {"task_id"}
//	GET  /result/:id  {"status":"processing"} until the result is stored
//	GET  /ws/:id      WebSocket that delivers exactly one result and closes
//
// The WebSocket handler subscribes to the task's topic before it consults
// the job store, so a result published in between is never missed.
package gateway
