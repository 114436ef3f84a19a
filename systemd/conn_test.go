// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package systemd

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/transient/lib/testutil"
)

// KillUnit must surface the manager call's error; the go-systemd
// method that returns one is the with-target variant.
var _ func(context.Context, string, int32) error = (*Client)(nil).KillUnit

// TestClientOpensWithHandshake verifies that a manager connection
// starts with the SASL handshake (a NUL byte followed by an AUTH
// line) rather than raw message framing, which a bus daemon would
// reject.
func TestClientOpensWithHandshake(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "bus.sock")
	listener, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()
	listener.(*net.UnixListener).SetDeadline(time.Now().Add(5 * time.Second))

	factory := NewFactory(Config{Address: "unix:path=" + sock})

	// The dial blocks waiting for an auth reply the fake bus never
	// sends; closing the accepted side below unblocks it with an
	// error.
	dialDone := make(chan error, 1)
	go func() {
		client, err := factory.Client()
		if err == nil {
			client.Close()
		}
		dialDone <- err
	}()

	conn, err := listener.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var opening []byte
	buf := make([]byte, 64)
	for len(opening) < 5 {
		n, err := conn.Read(buf)
		if err != nil {
			t.Fatalf("read handshake (got %q): %v", opening, err)
		}
		opening = append(opening, buf[:n]...)
	}
	conn.Close()

	if opening[0] != 0 || string(opening[1:5]) != "AUTH" {
		t.Errorf("connection opened with %q, want a NUL byte followed by an AUTH line", opening[:5])
	}

	if err := testutil.RequireReceive(t, dialDone, 5*time.Second, "waiting for Client to fail"); err == nil {
		t.Error("Client should fail when the bus drops the handshake")
	}
}
