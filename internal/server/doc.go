// Package server implements the WebSocket side of the room chat relay.
//
// The implementation is organized into specialized files for configuration,
// the hub (connection registry and room broadcast), clients, sessions (the
// per-connection protocol), routing and HTTP handlers.
package server
