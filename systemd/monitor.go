// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package systemd

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
)

// UnitInterface is the interface name carried in the body of the
// PropertiesChanged broadcasts that report unit state transitions.
const UnitInterface = "org.freedesktop.systemd1.Unit"

// MatchRule returns the signal match that scopes a monitor connection
// to one unit's property-change broadcasts.
func MatchRule(unitPath dbus.ObjectPath) string {
	return fmt.Sprintf("type='signal',sender='org.freedesktop.systemd1',path='%s',"+
		"interface='org.freedesktop.DBus.Properties',member='PropertiesChanged'", unitPath)
}

// UnitStateChange is one decoded PropertiesChanged broadcast.
type UnitStateChange struct {
	// Path is the object path the signal was emitted for.
	Path dbus.ObjectPath

	// Interface is the interface whose properties changed, carried in
	// the message body (distinct from the signal's own interface).
	Interface string

	// JobPath is the object path of the unit's current job, or "/"
	// when the message carries no Job property or the unit has no job.
	JobPath dbus.ObjectPath

	// SubState is the unit's fine-grained state, or "" when the
	// message does not carry one.
	SubState string
}

// Monitor is a dedicated bus connection in monitor mode, restricted by
// match rules to a single unit's property-change broadcasts.
//
// The bus library delivers captured messages on a channel. A pump
// goroutine internal to the monitor queues them and signals readiness
// through a pipe, so the caller's event loop can treat the monitor as
// one more pollable descriptor and stay single-threaded. Process pops
// at most one message per readiness byte.
type Monitor struct {
	conn   *dbus.Conn
	events chan *dbus.Message
	queue  chan *dbus.Message
	pipeR  *os.File
	pipeW  *os.File
	done   chan struct{}
	once   sync.Once
}

// Monitor opens a dedicated monitor-mode connection subscribed to the
// given match rules.
func (f *Factory) Monitor(ctx context.Context, matches []string) (*Monitor, error) {
	conn, err := f.dialBus()
	if err != nil {
		return nil, err
	}
	call := conn.BusObject().CallWithContext(ctx,
		"org.freedesktop.DBus.Monitoring.BecomeMonitor", 0, matches, uint32(0))
	if call.Err != nil {
		conn.Close()
		return nil, fmt.Errorf("become monitor: %w", call.Err)
	}

	events := make(chan *dbus.Message, 64)
	conn.Eavesdrop(events)

	m, err := newMonitor(conn, events)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return m, nil
}

// newMonitor wires the pump machinery around an eavesdrop channel.
// Split from Factory.Monitor so tests can drive it without a bus.
func newMonitor(conn *dbus.Conn, events chan *dbus.Message) (*Monitor, error) {
	pipeR, pipeW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("monitor readiness pipe: %w", err)
	}
	m := &Monitor{
		conn:   conn,
		events: events,
		queue:  make(chan *dbus.Message, cap(events)),
		pipeR:  pipeR,
		pipeW:  pipeW,
		done:   make(chan struct{}),
	}
	go m.pump()
	return m, nil
}

// pump moves captured messages from the bus channel to the queue,
// writing one readiness byte per message.
func (m *Monitor) pump() {
	defer m.pipeW.Close()
	for {
		select {
		case msg, ok := <-m.events:
			if !ok {
				return
			}
			select {
			case m.queue <- msg:
				m.pipeW.Write([]byte{0})
			case <-m.done:
				return
			}
		case <-m.done:
			return
		}
	}
}

// Descriptor returns the pollable readiness descriptor. It reads as
// ready whenever at least one captured message is queued.
func (m *Monitor) Descriptor() int {
	return int(m.pipeR.Fd())
}

// Process consumes one readiness byte and decodes the corresponding
// message. A message that is not a unit property-change broadcast
// decodes to nil, which callers treat as a no-op.
func (m *Monitor) Process() (*UnitStateChange, error) {
	var b [1]byte
	if _, err := m.pipeR.Read(b[:]); err != nil {
		return nil, fmt.Errorf("monitor connection closed: %w", err)
	}
	select {
	case msg := <-m.queue:
		return decodeStateChange(msg), nil
	default:
		return nil, nil
	}
}

// Close tears down the monitor connection and the pump. Safe to call
// more than once.
func (m *Monitor) Close() {
	m.once.Do(func() {
		close(m.done)
		if m.conn != nil {
			m.conn.Close()
		}
		m.pipeR.Close()
	})
}

// decodeStateChange extracts the unit state fields from a
// PropertiesChanged signal. Returns nil for anything else.
func decodeStateChange(msg *dbus.Message) *UnitStateChange {
	if msg == nil || msg.Type != dbus.TypeSignal {
		return nil
	}
	iface, _ := msg.Headers[dbus.FieldInterface].Value().(string)
	member, _ := msg.Headers[dbus.FieldMember].Value().(string)
	if iface != "org.freedesktop.DBus.Properties" || member != "PropertiesChanged" {
		return nil
	}
	if len(msg.Body) < 2 {
		return nil
	}
	target, _ := msg.Body[0].(string)
	changed, _ := msg.Body[1].(map[string]dbus.Variant)

	path, _ := msg.Headers[dbus.FieldPath].Value().(dbus.ObjectPath)
	change := &UnitStateChange{Path: path, Interface: target, JobPath: "/"}
	if v, ok := changed["Job"]; ok {
		// Job is (u, o): numeric id plus object path.
		if job, ok := v.Value().([]interface{}); ok && len(job) == 2 {
			if p, ok := job[1].(dbus.ObjectPath); ok {
				change.JobPath = p
			}
		}
	}
	if v, ok := changed["SubState"]; ok {
		if s, ok := v.Value().(string); ok {
			change.SubState = s
		}
	}
	return change
}
