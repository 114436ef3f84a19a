// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package systemd

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	sdbus "github.com/coreos/go-systemd/v22/dbus"
	"github.com/godbus/dbus/v5"
)

// Property is one transient-unit property as submitted on the wire.
// Alias of the go-systemd property type so callers build property
// lists without importing two dbus packages.
type Property = sdbus.Property

// Config selects which service manager a [Factory] talks to. Exactly
// one target is used, with precedence Address, then Machine, then the
// local manager chosen by UserMode.
type Config struct {
	// Address is an explicit D-Bus socket address, for example
	// "unix:path=/run/dbus/system_bus_socket".
	Address string

	// Machine is the name of a container or VM registered with
	// systemd-machined. Connections are tunneled into the machine
	// through systemd-stdio-bridge, the same transport sd-bus uses.
	Machine string

	// UserMode connects to the per-user session manager instead of
	// the system one.
	UserMode bool
}

// Factory dials private bus connections to the configured service
// manager. It holds no connection state itself and may be kept around
// for later lifecycle calls on units it helped create.
type Factory struct {
	config Config
}

// NewFactory returns a factory for the given connection target.
func NewFactory(config Config) *Factory {
	return &Factory{config: config}
}

// dialRaw opens an unauthenticated private connection to the
// configured bus. Only dialBus uses it; every consumer needs the Auth
// and Hello handshake before the bus will accept messages.
func (f *Factory) dialRaw() (*dbus.Conn, error) {
	switch {
	case f.config.Address != "":
		conn, err := dbus.Dial(f.config.Address)
		if err != nil {
			return nil, fmt.Errorf("dial bus address %q: %w", f.config.Address, err)
		}
		return conn, nil
	case f.config.Machine != "":
		return dialMachine(f.config.Machine)
	case f.config.UserMode:
		conn, err := dbus.SessionBusPrivate()
		if err != nil {
			return nil, fmt.Errorf("dial session bus: %w", err)
		}
		return conn, nil
	default:
		conn, err := dbus.SystemBusPrivate()
		if err != nil {
			return nil, fmt.Errorf("dial system bus: %w", err)
		}
		return conn, nil
	}
}

// dialBus opens an authenticated, registered private connection.
func (f *Factory) dialBus() (*dbus.Conn, error) {
	conn, err := f.dialRaw()
	if err != nil {
		return nil, err
	}
	if err := conn.Auth(nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bus auth: %w", err)
	}
	if err := conn.Hello(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bus hello: %w", err)
	}
	return conn, nil
}

// Client opens a manager connection through go-systemd. The wrapper
// dials twice internally (one connection for method calls, one for
// signals); both go through this factory's transport and perform the
// full Auth and Hello handshake. For Machine targets that means two
// systemd-stdio-bridge children per Client.
func (f *Factory) Client() (*Client, error) {
	conn, err := sdbus.NewConnection(f.dialBus)
	if err != nil {
		return nil, fmt.Errorf("connect to service manager: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Client is a connection to the service manager's Manager interface.
// Not safe for concurrent use.
type Client struct {
	conn *sdbus.Conn
}

// StartTransientUnit submits a transient unit and returns the object
// path of the start job. Mode is the systemd job mode, normally
// "fail".
func (c *Client) StartTransientUnit(ctx context.Context, name, mode string, properties []Property) (dbus.ObjectPath, error) {
	jobID, err := c.conn.StartTransientUnitContext(ctx, name, mode, properties, nil)
	if err != nil {
		return "", err
	}
	return jobPath(jobID), nil
}

// ServiceProperty reads one property from the unit's Service
// interface.
func (c *Client) ServiceProperty(ctx context.Context, unit, property string) (*Property, error) {
	return c.conn.GetServicePropertyContext(ctx, unit, property)
}

// UnitProperties reads the unit's generic Unit-interface property map.
func (c *Client) UnitProperties(ctx context.Context, unit string) (map[string]interface{}, error) {
	return c.conn.GetUnitPropertiesContext(ctx, unit)
}

// StopUnit enqueues a stop job for the unit.
func (c *Client) StopUnit(ctx context.Context, unit, mode string) error {
	_, err := c.conn.StopUnitContext(ctx, unit, mode, nil)
	return err
}

// KillUnit sends a signal to all of the unit's processes.
func (c *Client) KillUnit(ctx context.Context, unit string, signal int32) error {
	return c.conn.KillUnitWithTarget(ctx, unit, sdbus.All, signal)
}

// ResetFailedUnit clears the unit's failed state.
func (c *Client) ResetFailedUnit(ctx context.Context, unit string) error {
	return c.conn.ResetFailedUnitContext(ctx, unit)
}

// Close releases the underlying bus connections.
func (c *Client) Close() {
	c.conn.Close()
}

// jobPath converts a numeric job identifier to its object path.
func jobPath(id int) dbus.ObjectPath {
	return dbus.ObjectPath(fmt.Sprintf("/org/freedesktop/systemd1/job/%d", id))
}

// dialMachine opens a bus connection into a machine by spawning
// systemd-stdio-bridge and speaking D-Bus over its stdio, which is how
// sd-bus reaches a machine's service manager from the host.
func dialMachine(machine string) (*dbus.Conn, error) {
	bridge := exec.Command("systemd-stdio-bridge", "--machine="+machine)
	stdin, err := bridge.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdio bridge stdin: %w", err)
	}
	stdout, err := bridge.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdio bridge stdout: %w", err)
	}
	if err := bridge.Start(); err != nil {
		return nil, fmt.Errorf("start systemd-stdio-bridge for machine %q: %w", machine, err)
	}
	conn, err := dbus.NewConn(&bridgeStream{cmd: bridge, in: stdin, out: stdout})
	if err != nil {
		stdin.Close()
		bridge.Process.Kill()
		bridge.Wait()
		return nil, fmt.Errorf("bus over stdio bridge: %w", err)
	}
	return conn, nil
}

// bridgeStream adapts a systemd-stdio-bridge child process to the
// io.ReadWriteCloser the bus library expects.
type bridgeStream struct {
	cmd *exec.Cmd
	in  io.WriteCloser
	out io.ReadCloser
}

func (b *bridgeStream) Read(p []byte) (int, error)  { return b.out.Read(p) }
func (b *bridgeStream) Write(p []byte) (int, error) { return b.in.Write(p) }

func (b *bridgeStream) Close() error {
	b.in.Close()
	b.out.Close()
	// The bridge exits on its own once stdin closes.
	return b.cmd.Wait()
}
