// Package session holds the connection lifecycle state machine shared by the
// protocol client and its consumers.
package session
