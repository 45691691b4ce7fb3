// Package timeouts defines the timeout constants shared by the charforge
// binaries.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// Build caps one character build requested through the MCP server.
const Build = 30 * time.Second
