// Package services bundles the store with the services built on top of it
// so every front end (CLI, HTTP, MCP) wires them the same way.
package services
