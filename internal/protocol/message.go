package protocol

// Message is implemented by every frame variant the wire format carries.
// The set is closed: tag dispatch is a switch, never a runtime registry.
type Message interface {
	// Tag returns the one-byte wire tag for this message, for logging.
	Tag() byte
}

// Username is the first message a session must send: the handle it wants
// to log in as.
type Username struct {
	Handle string
}

func (Username) Tag() byte { return TagUsername }

// UsernameOk confirms a successful login.
type UsernameOk struct{}

func (UsernameOk) Tag() byte { return TagUsernameOk }

// UsernameTaken rejects a login: the handle is already in the registry.
type UsernameTaken struct{}

func (UsernameTaken) Tag() byte { return TagUsernameTaken }

// UsernameInvalid rejects a login (bad handle) or a command (self-target,
// unknown recipient) — the wire format reuses this tag for both per the
// spec's original design.
type UsernameInvalid struct{}

func (UsernameInvalid) Tag() byte { return TagUsernameInvalid }

// Metadata announces an upcoming file transfer: its name and total size.
type Metadata struct {
	Filename string
	Size     uint32
}

func (Metadata) Tag() byte { return TagMetadata }

// Chunk carries one segment of file data. Data must not exceed MaxChunkLen.
type Chunk struct {
	Filename string
	Data     []byte
}

func (Chunk) Tag() byte { return TagChunk }

// ConnectedUsers lists the handles of every other connected user.
type ConnectedUsers struct {
	Handles []string
}

func (ConnectedUsers) Tag() byte { return TagConnectedUsers }

// Offer describes one pending inbound file offer, as reported to the
// recipient by IncomingRequests.
type Offer struct {
	Sender   string
	Filename string
}

// IncomingRequests lists the caller's own pending offer queue.
type IncomingRequests struct {
	Offers []Offer
}

func (IncomingRequests) Tag() byte { return TagIncomingRequests }

// OkFailed reports that an Ok command found no matching offer.
type OkFailed struct{}

func (OkFailed) Tag() byte { return TagOkFailed }

// NoSuccess always answers a No command, matching or not (§9: idempotent
// by design).
type NoSuccess struct{}

func (NoSuccess) Tag() byte { return TagNoSuccess }

// ClientDisconnected is an explicit client-initiated disconnect signal.
type ClientDisconnected struct{}

func (ClientDisconnected) Tag() byte { return TagClientDisconnected }

// GlideRequestSent confirms a Glide command was queued and begins the
// upload phase.
type GlideRequestSent struct{}

func (GlideRequestSent) Tag() byte { return TagGlideRequestSent }

// OkSuccess confirms an Ok command matched a pending offer and begins the
// download phase.
type OkSuccess struct{}

func (OkSuccess) Tag() byte { return TagOkSuccess }

// Command wraps one of the five closed sub-commands carried under
// TagCommand.
type Command struct {
	Sub CommandBody
}

func (Command) Tag() byte { return TagCommand }

// CommandBody is implemented by each of the five sub-command payloads.
type CommandBody interface {
	SubTag() byte
}

// ListCmd requests the snapshot of other connected handles.
type ListCmd struct{}

func (ListCmd) SubTag() byte { return SubCmdList }

// RequestsCmd requests the caller's own pending offer queue.
type RequestsCmd struct{}

func (RequestsCmd) SubTag() byte { return SubCmdRequests }

// GlideCmd offers a file at Path to the handle To.
type GlideCmd struct {
	Path string
	To   string
}

func (GlideCmd) SubTag() byte { return SubCmdGlide }

// OkCmd accepts the first pending offer from From.
type OkCmd struct {
	From string
}

func (OkCmd) SubTag() byte { return SubCmdOk }

// NoCmd rejects the first pending offer from From.
type NoCmd struct {
	From string
}

func (NoCmd) SubTag() byte { return SubCmdNo }
