package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ngpal/glide/internal/protocol"
	"github.com/ngpal/glide/internal/session"
)

func TestServerAcceptsLoginsAndShutsDownGracefully(t *testing.T) {
	srv := New("127.0.0.1:0", t.TempDir(), time.Second, session.Config{}, nil, nil)

	// Run on a fixed port is awkward with ":0"; instead listen ourselves to
	// discover the address, matching the teacher's real-listener test style.
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := lis.Addr().String()
	lis.Close()
	srv.Addr = addr

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run(ctx) }()

	var conn net.Conn
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("tcp", addr)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	w := protocol.NewWriter(conn)
	r := protocol.NewReader(conn, nil)

	if err := w.WriteMessage(protocol.Username{Handle: "alice"}); err != nil {
		t.Fatalf("write username: %v", err)
	}
	msg, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if _, ok := msg.(protocol.UsernameOk); !ok {
		t.Fatalf("expected UsernameOk, got %#v", msg)
	}

	if err := w.WriteMessage(protocol.Command{Sub: protocol.ListCmd{}}); err != nil {
		t.Fatalf("write list: %v", err)
	}
	if _, err := r.ReadMessage(); err != nil {
		t.Fatalf("read list reply: %v", err)
	}

	cancel()

	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("Run returned an error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}
