// Package broadcast holds the room membership registry and the engine that
// turns join, send and leave requests into persisted messages and room-wide
// fan-out. It knows nothing about the transport; the websocket gateway drives
// it through plain method calls and receives events through an Outbox.
package broadcast
