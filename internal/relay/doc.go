// Package relay groups WebSocket clients by a topic string and forwards every
// message a client sends to all other clients currently on the same topic.
//
// The pieces are:
//
//   - Registry: the set of open connections and the topic each one joined,
//     indexed by topic.
//   - Relay: parses inbound frames, applies topic changes and fans the
//     message out to the sender's peers.
//   - Handler: the echo handler that upgrades a request, registers the
//     connection and runs its read loop until the connection closes.
//
// Inbound frames are JSON objects with two optional string fields:
//
//	{"topic": "room-42", "message": "hello"}
//
// A frame carrying "topic" moves the sender to that topic. A frame carrying a
// non-empty "message" is delivered, as the raw string with no envelope, to
// every other connection on the sender's topic. Connections that never set a
// topic neither send nor receive.
package relay
