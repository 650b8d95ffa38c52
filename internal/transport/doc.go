// Package transport is the boundary between the scheduler and the chat
// client that owns the IRC connection.
//
// Outgoing XDCC requests are expressed through the Commander interface. The
// daemon's implementation, Outbox, queues rendered commands that the host
// drains over IPC and sends on the wire; a token bucket keeps bursts of
// requests from getting the user kicked for flooding. Incoming transfer
// lifecycle notifications travel the other way as the Offer, Connect,
// Complete, Failed and Stalled event types.
package transport
