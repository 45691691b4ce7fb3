// Package service wires MCP transports to the character tools.
//
// It is the transport adapter layer: the package knows how to run MCP over
// stdio or streamable HTTP and delegates tool meaning to the domain package.
package service
