// Package mcp exposes the peacock store to MCP clients over stdio.
//
// Tools are registered with the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// and call the search, files and importer services directly. Every tool is
// also recorded in a ToolRegistry so front ends can describe what the server
// offers without starting it.
package mcp
