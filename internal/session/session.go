// Package session drives one connection from login through command
// dispatch and transfer, as the five-state machine of the data model:
// AwaitingHandle -> Active -> (AwaitingUpload | AwaitingDownload) -> Active
// -> Closed.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/ngpal/glide/internal/logfields"
	"github.com/ngpal/glide/internal/metrics"
	"github.com/ngpal/glide/internal/protocol"
	"github.com/ngpal/glide/internal/registry"
	"github.com/ngpal/glide/internal/staging"
	"github.com/ngpal/glide/internal/transfer"
)

type state int

const (
	stateAwaitingHandle state = iota
	stateActive
	stateAwaitingUpload
	stateAwaitingDownload
	stateClosed
)

// Config controls session behavior. A zero Config is usable; defaults()
// fills in the chunk size.
type Config struct {
	ChunkSize int
}

func (c *Config) defaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = transfer.DefaultChunkSize
	}
}

// transferIntent names the peer and filename on the other side of a
// pending upload or download, set by the command that triggers the
// transfer and consumed by the matching run* method.
type transferIntent struct {
	peer     string
	filename string
}

// Session drives a single connection through login, command dispatch, and
// file transfer. Create one per accepted connection and call Run.
type Session struct {
	conn     net.Conn
	registry *registry.Registry
	staging  *staging.Store
	cfg      Config
	logger   *slog.Logger
	metrics  metrics.ServerMetrics

	r *protocol.Reader
	w *protocol.Writer

	handle string

	pendingUpload   *transferIntent
	pendingDownload *transferIntent
}

// New returns a Session ready to run over conn. logger should already be
// bound with any connection-scoped fields the caller wants (remote_addr,
// correlation id); Run additionally binds the handle once login succeeds.
// m may be nil, which disables metrics collection for this session.
func New(conn net.Conn, reg *registry.Registry, store *staging.Store, cfg Config, logger *slog.Logger, m metrics.ServerMetrics) *Session {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		conn:     conn,
		registry: reg,
		staging:  store,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		r:        protocol.NewReader(conn, logger),
		w:        protocol.NewWriter(conn),
	}
}

// Run drives the session state machine to completion. It always cleans up
// the registry entry (if one was made) before returning.
func (s *Session) Run(ctx context.Context) error {
	if s.metrics != nil {
		s.metrics.SessionStarted()
		defer s.metrics.SessionEnded()
	}

	st := stateAwaitingHandle
	var runErr error

	for st != stateClosed {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		switch st {
		case stateAwaitingHandle:
			next, err := s.awaitHandle()
			if err != nil {
				runErr = err
				st = stateClosed
				continue
			}
			st = next

		case stateActive:
			next, err := s.active()
			if err != nil {
				runErr = err
				st = stateClosed
				continue
			}
			st = next

		case stateAwaitingUpload:
			// Returns to Active on success or failure: the sender can
			// just retry the glide.
			if err := s.runUpload(); err != nil {
				s.logger.Error("upload failed", logfields.Err, err)
			}
			s.pendingUpload = nil
			st = stateActive

		case stateAwaitingDownload:
			// Unlike the upload side, a failed re-serve has no retry
			// path for the recipient, so it closes the session instead.
			if err := s.runDownload(); err != nil {
				s.logger.Error("download failed", logfields.Err, err)
				s.pendingDownload = nil
				runErr = err
				st = stateClosed
				continue
			}
			s.pendingDownload = nil
			st = stateActive
		}
	}

	if s.handle != "" {
		s.registry.Remove(s.handle)
		s.logger.Info("session closed", logfields.Handle, s.handle)
	}
	return runErr
}

// awaitHandle processes the initial Username message and transitions to
// Active on success, or loops back after a rejection so the client can
// retry with a different handle.
func (s *Session) awaitHandle() (state, error) {
	msg, err := s.r.ReadMessage()
	if err != nil {
		return stateClosed, fmt.Errorf("session: read handle: %w", err)
	}

	uname, ok := msg.(protocol.Username)
	if !ok || uname.Handle == "" || strings.ContainsFunc(uname.Handle, unicode.IsSpace) {
		if err := s.w.WriteMessage(protocol.UsernameInvalid{}); err != nil {
			return stateClosed, err
		}
		return stateAwaitingHandle, nil
	}

	if err := s.registry.InsertIfAbsent(uname.Handle, s.conn); err != nil {
		if errors.Is(err, registry.ErrHandleTaken) {
			if err := s.w.WriteMessage(protocol.UsernameTaken{}); err != nil {
				return stateClosed, err
			}
			return stateAwaitingHandle, nil
		}
		return stateClosed, err
	}

	s.handle = uname.Handle
	s.logger = s.logger.With(logfields.Handle, s.handle)
	if err := s.w.WriteMessage(protocol.UsernameOk{}); err != nil {
		return stateClosed, err
	}
	return stateActive, nil
}

// active reads one message and dispatches it: either a Command sub-message
// or an explicit disconnect.
func (s *Session) active() (state, error) {
	msg, err := s.r.ReadMessage()
	if err != nil {
		return stateClosed, fmt.Errorf("session: read command: %w", err)
	}

	switch m := msg.(type) {
	case protocol.ClientDisconnected:
		return stateClosed, nil

	case protocol.Command:
		return s.dispatch(m.Sub)

	default:
		// Any other message while idle is a protocol violation from this
		// peer; report it and keep the connection open.
		if err := s.w.WriteMessage(protocol.UsernameInvalid{}); err != nil {
			return stateClosed, err
		}
		return stateActive, nil
	}
}

// dispatch is the closed switch over the five sub-commands; no runtime
// lookup table.
func (s *Session) dispatch(body protocol.CommandBody) (state, error) {
	s.logger.Debug("command received", logfields.Command, fmt.Sprintf("%T", body))

	switch cmd := body.(type) {
	case protocol.ListCmd:
		handles := s.registry.ListOthers(s.handle)
		if err := s.w.WriteMessage(protocol.ConnectedUsers{Handles: handles}); err != nil {
			return stateClosed, err
		}
		return stateActive, nil

	case protocol.RequestsCmd:
		offers := s.registry.OffersFor(s.handle)
		out := make([]protocol.Offer, 0, len(offers))
		for _, o := range offers {
			out = append(out, protocol.Offer{Sender: o.Sender, Filename: o.Filename})
		}
		if err := s.w.WriteMessage(protocol.IncomingRequests{Offers: out}); err != nil {
			return stateClosed, err
		}
		return stateActive, nil

	case protocol.GlideCmd:
		return s.handleGlide(cmd)

	case protocol.OkCmd:
		return s.handleOk(cmd)

	case protocol.NoCmd:
		return s.handleNo(cmd)

	default:
		return stateClosed, fmt.Errorf("session: unhandled command body %T", body)
	}
}

// handleGlide queues an offer against the recipient and, if accepted by
// the registry, puts this session into AwaitingUpload so the very next
// frames on the wire are the Metadata/Chunk stream for that file.
func (s *Session) handleGlide(cmd protocol.GlideCmd) (state, error) {
	if cmd.To == s.handle {
		if err := s.w.WriteMessage(protocol.UsernameInvalid{}); err != nil {
			return stateClosed, err
		}
		return stateActive, nil
	}

	filename := filepath.Base(cmd.Path)

	if ok := s.registry.AppendOffer(cmd.To, registry.Offer{Sender: s.handle, Filename: filename}); !ok {
		if err := s.w.WriteMessage(protocol.UsernameInvalid{}); err != nil {
			return stateClosed, err
		}
		return stateActive, nil
	}

	if s.metrics != nil {
		s.metrics.OfferQueued()
	}
	s.pendingUpload = &transferIntent{peer: cmd.To, filename: filename}
	if err := s.w.WriteMessage(protocol.GlideRequestSent{}); err != nil {
		return stateClosed, err
	}
	return stateAwaitingUpload, nil
}

// handleOk accepts the first pending offer from cmd.From and, on success,
// puts this session into AwaitingDownload so the server can immediately
// relay the staged file back.
func (s *Session) handleOk(cmd protocol.OkCmd) (state, error) {
	offer, found := s.registry.RemoveOffer(s.handle, cmd.From)
	if !found {
		if err := s.w.WriteMessage(protocol.OkFailed{}); err != nil {
			return stateClosed, err
		}
		return stateActive, nil
	}

	if err := s.w.WriteMessage(protocol.OkSuccess{}); err != nil {
		return stateClosed, err
	}
	s.pendingDownload = &transferIntent{peer: cmd.From, filename: offer.Filename}
	return stateAwaitingDownload, nil
}

// handleNo always reports success, matching or not: rejection is
// idempotent by design.
func (s *Session) handleNo(cmd protocol.NoCmd) (state, error) {
	s.registry.RemoveOffer(s.handle, cmd.From)
	if err := s.w.WriteMessage(protocol.NoSuccess{}); err != nil {
		return stateClosed, err
	}
	return stateActive, nil
}

// runUpload receives the file this session just offered and stages it
// under <sender>/<recipient>/<basename>. A failed receive removes the
// partially written file.
func (s *Session) runUpload() error {
	intent := s.pendingUpload
	if intent == nil {
		return fmt.Errorf("session: runUpload called with no pending upload")
	}

	dst, err := s.staging.Create(s.handle, intent.peer, intent.filename)
	if err != nil {
		return fmt.Errorf("session: stage upload: %w", err)
	}
	defer dst.Close()

	filename, size, err := transfer.Receive(s.r, dst)
	if err != nil {
		// Discard the partial file so it is never re-served as complete.
		dst.Close()
		if delErr := s.staging.Delete(s.handle, intent.peer, intent.filename); delErr != nil {
			s.logger.Error("failed to clean up partial upload", logfields.Err, delErr)
		}
		return fmt.Errorf("session: receive upload: %w", err)
	}
	if s.metrics != nil {
		s.metrics.BytesRelayed(uint64(size))
	}
	s.logger.Info("upload staged", logfields.Peer, intent.peer, logfields.Filename, filename, logfields.Bytes, size)
	return nil
}

// runDownload relays a staged file back to the session that just accepted
// it with Ok, then deletes the staged copy.
func (s *Session) runDownload() error {
	intent := s.pendingDownload
	if intent == nil {
		return fmt.Errorf("session: runDownload called with no pending download")
	}

	src, err := s.staging.Open(intent.peer, s.handle, intent.filename)
	if err != nil {
		return fmt.Errorf("session: open staged file: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("session: stat staged file: %w", err)
	}

	if err := transfer.Send(s.w, intent.filename, uint32(info.Size()), src, s.cfg.ChunkSize); err != nil {
		return fmt.Errorf("session: send download: %w", err)
	}

	if err := s.staging.Delete(intent.peer, s.handle, intent.filename); err != nil {
		s.logger.Error("failed to clean up staged file", logfields.Err, err)
	}
	if s.metrics != nil {
		s.metrics.BytesRelayed(uint64(info.Size()))
	}
	s.logger.Info("download relayed", logfields.Peer, intent.peer, logfields.Filename, intent.filename, logfields.Bytes, info.Size())
	return nil
}
