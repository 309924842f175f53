package protocol

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// ErrUnknownTag is returned when the decoder encounters a tag byte outside
// the closed set this protocol defines.
var ErrUnknownTag = errors.New("protocol: unknown message tag")

// frameReader wraps an io.Reader with buffering and the small set of
// primitive reads every message decode is built from.
type frameReader struct {
	r      *bufio.Reader
	logger *slog.Logger
}

func newFrameReader(r io.Reader, logger *slog.Logger) *frameReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &frameReader{r: bufio.NewReader(r), logger: logger}
}

func (fr *frameReader) readByte() (byte, error) {
	return fr.r.ReadByte()
}

// readCString reads bytes up to and including a null terminator, returning
// the string without the terminator.
func (fr *frameReader) readCString() (string, error) {
	s, err := fr.r.ReadString(0x00)
	if err != nil {
		return "", fmt.Errorf("protocol: read string: %w", err)
	}
	return s[:len(s)-1], nil
}

func (fr *frameReader) readUint16() (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(fr.r, buf[:]); err != nil {
		return 0, fmt.Errorf("protocol: read uint16: %w", err)
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func (fr *frameReader) readUint32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(fr.r, buf[:]); err != nil {
		return 0, fmt.Errorf("protocol: read uint32: %w", err)
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func (fr *frameReader) readFull(n uint16) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(fr.r, buf); err != nil {
		return nil, fmt.Errorf("protocol: read %d bytes: %w", n, err)
	}
	return buf, nil
}

// frameWriter wraps an io.Writer with buffering and the matching primitive
// writes.
type frameWriter struct {
	w *bufio.Writer
}

func newFrameWriter(w io.Writer) *frameWriter {
	return &frameWriter{w: bufio.NewWriter(w)}
}

func (fw *frameWriter) writeByte(b byte) error {
	return fw.w.WriteByte(b)
}

func (fw *frameWriter) writeCString(s string) error {
	if _, err := fw.w.WriteString(s); err != nil {
		return err
	}
	return fw.w.WriteByte(0x00)
}

func (fw *frameWriter) writeUint16(v uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	_, err := fw.w.Write(buf[:])
	return err
}

func (fw *frameWriter) writeUint32(v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := fw.w.Write(buf[:])
	return err
}

func (fw *frameWriter) writeBytes(b []byte) error {
	_, err := fw.w.Write(b)
	return err
}

func (fw *frameWriter) Flush() error {
	return fw.w.Flush()
}

// Reader decodes a stream of Messages from an underlying byte stream.
type Reader struct {
	fr *frameReader
}

// NewReader wraps r for message decoding. logger may be nil.
func NewReader(r io.Reader, logger *slog.Logger) *Reader {
	return &Reader{fr: newFrameReader(r, logger)}
}

// ReadMessage blocks until one complete message is available, decodes it,
// and returns it. Zero tag bytes encountered at a frame boundary are
// padding and are skipped silently. An unrecognized tag is a protocol
// violation and returns ErrUnknownTag.
func (r *Reader) ReadMessage() (Message, error) {
	fr := r.fr

	var tag byte
	for {
		b, err := fr.readByte()
		if err != nil {
			return nil, err
		}
		if b == 0x00 {
			continue
		}
		tag = b
		break
	}

	fr.logger.Debug("decoded frame", "tag", tagName(tag))

	switch tag {
	case TagUsername:
		handle, err := fr.readCString()
		if err != nil {
			return nil, err
		}
		return Username{Handle: handle}, nil

	case TagUsernameOk:
		return UsernameOk{}, nil

	case TagUsernameTaken:
		return UsernameTaken{}, nil

	case TagUsernameInvalid:
		return UsernameInvalid{}, nil

	case TagMetadata:
		filename, err := fr.readCString()
		if err != nil {
			return nil, err
		}
		size, err := fr.readUint32()
		if err != nil {
			return nil, err
		}
		return Metadata{Filename: filename, Size: size}, nil

	case TagChunk:
		filename, err := fr.readCString()
		if err != nil {
			return nil, err
		}
		n, err := fr.readUint16()
		if err != nil {
			return nil, err
		}
		data, err := fr.readFull(n)
		if err != nil {
			return nil, err
		}
		return Chunk{Filename: filename, Data: data}, nil

	case TagConnectedUsers:
		count, err := fr.readUint16()
		if err != nil {
			return nil, err
		}
		handles := make([]string, 0, count)
		for i := uint16(0); i < count; i++ {
			h, err := fr.readCString()
			if err != nil {
				return nil, err
			}
			handles = append(handles, h)
		}
		return ConnectedUsers{Handles: handles}, nil

	case TagIncomingRequests:
		count, err := fr.readUint16()
		if err != nil {
			return nil, err
		}
		offers := make([]Offer, 0, count)
		for i := uint16(0); i < count; i++ {
			sender, err := fr.readCString()
			if err != nil {
				return nil, err
			}
			filename, err := fr.readCString()
			if err != nil {
				return nil, err
			}
			offers = append(offers, Offer{Sender: sender, Filename: filename})
		}
		return IncomingRequests{Offers: offers}, nil

	case TagCommand:
		return r.readCommand()

	case TagOkFailed:
		return OkFailed{}, nil

	case TagNoSuccess:
		return NoSuccess{}, nil

	case TagClientDisconnected:
		return ClientDisconnected{}, nil

	case TagGlideRequestSent:
		return GlideRequestSent{}, nil

	case TagOkSuccess:
		return OkSuccess{}, nil

	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownTag, tag)
	}
}

func (r *Reader) readCommand() (Message, error) {
	fr := r.fr
	sub, err := fr.readByte()
	if err != nil {
		return nil, err
	}
	fr.logger.Debug("decoded command", "sub", subCmdName(sub))

	switch sub {
	case SubCmdList:
		return Command{Sub: ListCmd{}}, nil

	case SubCmdRequests:
		return Command{Sub: RequestsCmd{}}, nil

	case SubCmdGlide:
		path, err := fr.readCString()
		if err != nil {
			return nil, err
		}
		to, err := fr.readCString()
		if err != nil {
			return nil, err
		}
		return Command{Sub: GlideCmd{Path: path, To: to}}, nil

	case SubCmdOk:
		from, err := fr.readCString()
		if err != nil {
			return nil, err
		}
		return Command{Sub: OkCmd{From: from}}, nil

	case SubCmdNo:
		from, err := fr.readCString()
		if err != nil {
			return nil, err
		}
		return Command{Sub: NoCmd{From: from}}, nil

	default:
		return nil, fmt.Errorf("%w: command sub-tag 0x%02x", ErrUnknownTag, sub)
	}
}

// Writer encodes Messages onto an underlying byte stream.
type Writer struct {
	fw *frameWriter
}

// NewWriter wraps w for message encoding.
func NewWriter(w io.Writer) *Writer {
	return &Writer{fw: newFrameWriter(w)}
}

// WriteMessage encodes m and flushes it to the underlying stream.
func (w *Writer) WriteMessage(m Message) error {
	if err := w.encode(m); err != nil {
		return err
	}
	return w.fw.Flush()
}

func (w *Writer) encode(m Message) error {
	fw := w.fw

	switch v := m.(type) {
	case Username:
		if err := fw.writeByte(TagUsername); err != nil {
			return err
		}
		return fw.writeCString(v.Handle)

	case UsernameOk:
		return fw.writeByte(TagUsernameOk)

	case UsernameTaken:
		return fw.writeByte(TagUsernameTaken)

	case UsernameInvalid:
		return fw.writeByte(TagUsernameInvalid)

	case Metadata:
		if err := fw.writeByte(TagMetadata); err != nil {
			return err
		}
		if err := fw.writeCString(v.Filename); err != nil {
			return err
		}
		return fw.writeUint32(v.Size)

	case Chunk:
		if len(v.Data) > MaxChunkLen {
			return fmt.Errorf("protocol: chunk of %d bytes exceeds max %d", len(v.Data), MaxChunkLen)
		}
		if err := fw.writeByte(TagChunk); err != nil {
			return err
		}
		if err := fw.writeCString(v.Filename); err != nil {
			return err
		}
		if err := fw.writeUint16(uint16(len(v.Data))); err != nil {
			return err
		}
		return fw.writeBytes(v.Data)

	case ConnectedUsers:
		if err := fw.writeByte(TagConnectedUsers); err != nil {
			return err
		}
		if err := fw.writeUint16(uint16(len(v.Handles))); err != nil {
			return err
		}
		for _, h := range v.Handles {
			if err := fw.writeCString(h); err != nil {
				return err
			}
		}
		return nil

	case IncomingRequests:
		if err := fw.writeByte(TagIncomingRequests); err != nil {
			return err
		}
		if err := fw.writeUint16(uint16(len(v.Offers))); err != nil {
			return err
		}
		for _, o := range v.Offers {
			if err := fw.writeCString(o.Sender); err != nil {
				return err
			}
			if err := fw.writeCString(o.Filename); err != nil {
				return err
			}
		}
		return nil

	case Command:
		if err := fw.writeByte(TagCommand); err != nil {
			return err
		}
		return w.encodeCommandBody(v.Sub)

	case OkFailed:
		return fw.writeByte(TagOkFailed)

	case NoSuccess:
		return fw.writeByte(TagNoSuccess)

	case ClientDisconnected:
		return fw.writeByte(TagClientDisconnected)

	case GlideRequestSent:
		return fw.writeByte(TagGlideRequestSent)

	case OkSuccess:
		return fw.writeByte(TagOkSuccess)

	default:
		return fmt.Errorf("protocol: unencodable message type %T", m)
	}
}

func (w *Writer) encodeCommandBody(body CommandBody) error {
	fw := w.fw

	switch v := body.(type) {
	case ListCmd:
		return fw.writeByte(SubCmdList)

	case RequestsCmd:
		return fw.writeByte(SubCmdRequests)

	case GlideCmd:
		if err := fw.writeByte(SubCmdGlide); err != nil {
			return err
		}
		if err := fw.writeCString(v.Path); err != nil {
			return err
		}
		return fw.writeCString(v.To)

	case OkCmd:
		if err := fw.writeByte(SubCmdOk); err != nil {
			return err
		}
		return fw.writeCString(v.From)

	case NoCmd:
		if err := fw.writeByte(SubCmdNo); err != nil {
			return err
		}
		return fw.writeCString(v.From)

	default:
		return fmt.Errorf("protocol: unencodable command body %T", body)
	}
}
