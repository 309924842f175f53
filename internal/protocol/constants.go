// Package protocol implements the wire codec for the glide rendezvous
// protocol: a one-byte tag per message, null-terminated strings, and
// big-endian fixed-width integers.
package protocol

// Message tags, as they appear on the wire.
const (
	TagUsername           = 0x01
	TagUsernameOk         = 0x02
	TagUsernameTaken      = 0x03
	TagUsernameInvalid    = 0x04
	TagMetadata           = 0x05
	TagChunk              = 0x06
	TagConnectedUsers     = 0x07
	TagIncomingRequests   = 0x08
	TagCommand            = 0x09
	TagOkFailed           = 0x0A
	TagNoSuccess          = 0x0B
	TagClientDisconnected = 0x0C
	TagGlideRequestSent   = 0x0D
	TagOkSuccess          = 0x0E
)

// Command sub-tags, following TagCommand.
const (
	SubCmdList     = 0x01
	SubCmdRequests = 0x02
	SubCmdGlide    = 0x03
	SubCmdOk       = 0x04
	SubCmdNo       = 0x05
)

// MaxChunkLen is the largest data payload a single Chunk frame can carry;
// the length field is a 2-byte unsigned integer.
const MaxChunkLen = 0xFFFF

// tagName returns a human-readable name for a message tag, for logging.
func tagName(tag byte) string {
	switch tag {
	case TagUsername:
		return "Username"
	case TagUsernameOk:
		return "UsernameOk"
	case TagUsernameTaken:
		return "UsernameTaken"
	case TagUsernameInvalid:
		return "UsernameInvalid"
	case TagMetadata:
		return "Metadata"
	case TagChunk:
		return "Chunk"
	case TagConnectedUsers:
		return "ConnectedUsers"
	case TagIncomingRequests:
		return "IncomingRequests"
	case TagCommand:
		return "Command"
	case TagOkFailed:
		return "OkFailed"
	case TagNoSuccess:
		return "NoSuccess"
	case TagClientDisconnected:
		return "ClientDisconnected"
	case TagGlideRequestSent:
		return "GlideRequestSent"
	case TagOkSuccess:
		return "OkSuccess"
	default:
		return "Unknown"
	}
}

// subCmdName returns a human-readable name for a command sub-tag.
func subCmdName(sub byte) string {
	switch sub {
	case SubCmdList:
		return "List"
	case SubCmdRequests:
		return "Requests"
	case SubCmdGlide:
		return "Glide"
	case SubCmdOk:
		return "Ok"
	case SubCmdNo:
		return "No"
	default:
		return "Unknown"
	}
}
