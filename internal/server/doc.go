// Package server implements the MCP (Model Context Protocol) server for
// retinal motion pattern analysis.
//
// This package provides a JSON-RPC 2.0 server that exposes the motion pattern
// generator, the interference/variance aggregator and the fundus mask through
// the MCP protocol, so MCP-compatible clients can run them on fundus images.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Basic Image Information:
//   - image_load: Load image and get metadata
//   - image_dimensions: Get width and height
//
// Motion Patterns:
//   - gmp_generate: Rotate about one pivot and coalesce (MAX, MIN or MEAN)
//   - gmp_interference_variance: Interference and variance maps over random pivots
//
// Region of Interest:
//   - fundus_mask: Illuminated fundus disc as a binary mask
//
// Arguments a tool omits fall back to the server's config.Config, so a YAML
// file or RETINA_GMP_* environment variables change the defaults for every
// call.
//
// # Image Caching
//
// Decoded images are kept in a bounded LRU cache keyed by path
// (config key server.cache_size), so repeated calls on the same image skip
// disk I/O.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32602 for arguments the tool rejects, -32000 for other failures
//   - message: Human-readable error description
//   - data: The Go error string
//
// Failures are also logged through the server's slog.Logger.
//
// # Usage
//
//	srv := server.New(cfg, logger)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
