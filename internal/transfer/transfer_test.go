package transfer

import (
	"bytes"
	"errors"
	"net"
	"testing"

	"github.com/ngpal/glide/internal/protocol"
)

func TestSendReceiveRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payload := bytes.Repeat([]byte("glide"), 300) // larger than one default chunk

	done := make(chan error, 1)
	go func() {
		w := protocol.NewWriter(client)
		done <- Send(w, "notes.txt", uint32(len(payload)), bytes.NewReader(payload), DefaultChunkSize)
	}()

	r := protocol.NewReader(server, nil)
	var out bytes.Buffer
	filename, size, err := Receive(r, &out)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}

	if filename != "notes.txt" {
		t.Fatalf("filename = %q, want %q", filename, "notes.txt")
	}
	if int(size) != len(payload) {
		t.Fatalf("size = %d, want %d", size, len(payload))
	}
	if !bytes.Equal(out.Bytes(), payload) {
		t.Fatal("received payload does not match sent payload")
	}
}

func TestReceiveRejectsWrongFirstFrame(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		w := protocol.NewWriter(client)
		_ = w.WriteMessage(protocol.UsernameOk{})
	}()

	r := protocol.NewReader(server, nil)
	var out bytes.Buffer
	if _, _, err := Receive(r, &out); err == nil {
		t.Fatal("expected an error for a non-Metadata first frame")
	}
}

func TestReceiveDetectsUnexpectedEnd(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	go func() {
		w := protocol.NewWriter(client)
		_ = w.WriteMessage(protocol.Metadata{Filename: "x.bin", Size: 100})
		_ = w.WriteMessage(protocol.Chunk{Filename: "x.bin", Data: []byte("short")})
		client.Close()
	}()

	r := protocol.NewReader(server, nil)
	var out bytes.Buffer
	if _, _, err := Receive(r, &out); !errors.Is(err, ErrUnexpectedEnd) {
		t.Fatalf("got %v, want ErrUnexpectedEnd when the connection closes early", err)
	}
}

func TestSendRejectsOversizedChunkSize(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	w := protocol.NewWriter(client)
	err := Send(w, "x.bin", 10, bytes.NewReader([]byte("0123456789")), protocol.MaxChunkLen+1)
	if err == nil {
		t.Fatal("expected an error for an oversized chunk size")
	}
}
