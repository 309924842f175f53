// Package transfer drives the byte-relay phase of a file exchange: a
// Metadata frame followed by a run of Chunk frames, read from one peer's
// connection and written to the server's staging store (or vice versa).
package transfer

import (
	"errors"
	"fmt"
	"io"

	"github.com/ngpal/glide/internal/protocol"
)

// DefaultChunkSize matches the reference chunk size this protocol was
// designed around.
const DefaultChunkSize = 1024

// ErrProtocolMismatch is returned when a frame arrives out of the sequence
// an upload or download requires.
var ErrProtocolMismatch = errors.New("transfer: unexpected message for current phase")

// ErrUnexpectedEnd is returned when the connection closes before the
// declared byte count has been received.
var ErrUnexpectedEnd = errors.New("transfer: connection closed before declared size was reached")

// ErrSizeMismatch is returned when the total bytes a sender actually wrote
// does not match the size it declared in Metadata.
var ErrSizeMismatch = errors.New("transfer: declared size does not match bytes sent")

// Receive reads one Metadata frame followed by Chunk frames from r, writing
// their payloads to dst, until the declared size has been received. It
// returns the filename and size the sender declared.
func Receive(r *protocol.Reader, dst io.Writer) (filename string, size uint32, err error) {
	msg, err := r.ReadMessage()
	if err != nil {
		return "", 0, fmt.Errorf("transfer: read metadata: %w", err)
	}
	meta, ok := msg.(protocol.Metadata)
	if !ok {
		return "", 0, fmt.Errorf("%w: expected Metadata, got %T", ErrProtocolMismatch, msg)
	}

	var received uint32
	for received < meta.Size {
		msg, err := r.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return "", 0, fmt.Errorf("%w: got %d of %d bytes", ErrUnexpectedEnd, received, meta.Size)
			}
			return "", 0, fmt.Errorf("transfer: read chunk: %w", err)
		}
		chunk, ok := msg.(protocol.Chunk)
		if !ok {
			return "", 0, fmt.Errorf("%w: expected Chunk, got %T", ErrProtocolMismatch, msg)
		}
		if chunk.Filename != meta.Filename {
			return "", 0, fmt.Errorf("%w: chunk for %q during transfer of %q", ErrProtocolMismatch, chunk.Filename, meta.Filename)
		}
		if _, err := dst.Write(chunk.Data); err != nil {
			return "", 0, fmt.Errorf("transfer: write chunk to destination: %w", err)
		}
		received += uint32(len(chunk.Data))
	}

	if received != meta.Size {
		return "", 0, fmt.Errorf("%w: declared %d, received %d", ErrSizeMismatch, meta.Size, received)
	}
	return meta.Filename, meta.Size, nil
}

// Send writes one Metadata frame followed by chunked Chunk frames read from
// src, until size bytes have been written. chunkSize must be positive and
// no larger than protocol.MaxChunkLen; DefaultChunkSize is a reasonable
// choice.
func Send(w *protocol.Writer, filename string, size uint32, src io.Reader, chunkSize int) error {
	if chunkSize <= 0 || chunkSize > protocol.MaxChunkLen {
		return fmt.Errorf("transfer: invalid chunk size %d", chunkSize)
	}

	if err := w.WriteMessage(protocol.Metadata{Filename: filename, Size: size}); err != nil {
		return fmt.Errorf("transfer: write metadata: %w", err)
	}

	buf := make([]byte, chunkSize)
	var sent uint32
	for sent < size {
		n, err := src.Read(buf)
		if n > 0 {
			if err := w.WriteMessage(protocol.Chunk{Filename: filename, Data: append([]byte(nil), buf[:n]...)}); err != nil {
				return fmt.Errorf("transfer: write chunk: %w", err)
			}
			sent += uint32(n)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("transfer: read source: %w", err)
		}
	}

	if sent != size {
		return fmt.Errorf("%w: declared %d, sent %d", ErrSizeMismatch, size, sent)
	}
	return nil
}
