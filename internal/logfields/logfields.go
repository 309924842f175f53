// Package logfields names the structured log keys glided's components
// share, so a log line from the server and one from a session use the
// same key for the same concept.
package logfields

const (
	Handle     = "handle"
	Peer       = "peer"
	RemoteAddr = "remote_addr"
	Command    = "command"
	Filename   = "filename"
	Bytes      = "bytes"
	Err        = "err"
	SessionID  = "session_id"
)
