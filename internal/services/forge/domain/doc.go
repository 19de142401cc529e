// Package domain defines the MCP tool surface of the forge service: tool
// schemas and handlers for generation sessions and canon management.
package domain
