// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package systemd

import (
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"
)

func TestMatchRule(t *testing.T) {
	rule := MatchRule("/org/freedesktop/systemd1/unit/foo_2eservice")
	want := "type='signal',sender='org.freedesktop.systemd1'," +
		"path='/org/freedesktop/systemd1/unit/foo_2eservice'," +
		"interface='org.freedesktop.DBus.Properties',member='PropertiesChanged'"
	if rule != want {
		t.Errorf("match rule mismatch:\n got %s\nwant %s", rule, want)
	}
}

// propertiesChanged builds a synthetic PropertiesChanged signal the
// way systemd emits them.
func propertiesChanged(path dbus.ObjectPath, target string, changed map[string]dbus.Variant) *dbus.Message {
	return &dbus.Message{
		Type: dbus.TypeSignal,
		Headers: map[dbus.HeaderField]dbus.Variant{
			dbus.FieldPath:      dbus.MakeVariant(path),
			dbus.FieldInterface: dbus.MakeVariant("org.freedesktop.DBus.Properties"),
			dbus.FieldMember:    dbus.MakeVariant("PropertiesChanged"),
		},
		Body: []interface{}{target, changed, []string{}},
	}
}

func TestDecodeStateChange(t *testing.T) {
	unitPath := dbus.ObjectPath("/org/freedesktop/systemd1/unit/test_2eservice")
	msg := propertiesChanged(unitPath, UnitInterface, map[string]dbus.Variant{
		"SubState": dbus.MakeVariant("exited"),
		"Job": dbus.MakeVariant([]interface{}{
			uint32(42), dbus.ObjectPath("/org/freedesktop/systemd1/job/42"),
		}),
	})

	change := decodeStateChange(msg)
	if change == nil {
		t.Fatal("expected a decoded change, got nil")
	}
	if change.Path != unitPath {
		t.Errorf("path: got %s", change.Path)
	}
	if change.Interface != UnitInterface {
		t.Errorf("interface: got %s", change.Interface)
	}
	if change.SubState != "exited" {
		t.Errorf("substate: got %q", change.SubState)
	}
	if change.JobPath != "/org/freedesktop/systemd1/job/42" {
		t.Errorf("job path: got %s", change.JobPath)
	}
}

func TestDecodeStateChangeDefaults(t *testing.T) {
	// No Job and no SubState in the body: job path defaults to "/"
	// and the substate stays empty.
	msg := propertiesChanged("/org/freedesktop/systemd1/unit/x", UnitInterface, map[string]dbus.Variant{
		"ActiveState": dbus.MakeVariant("active"),
	})

	change := decodeStateChange(msg)
	if change == nil {
		t.Fatal("expected a decoded change, got nil")
	}
	if change.JobPath != "/" {
		t.Errorf("expected default job path /, got %s", change.JobPath)
	}
	if change.SubState != "" {
		t.Errorf("expected empty substate, got %q", change.SubState)
	}
}

func TestDecodeStateChangeIgnoresOtherMessages(t *testing.T) {
	methodCall := &dbus.Message{
		Type: dbus.TypeMethodCall,
		Headers: map[dbus.HeaderField]dbus.Variant{
			dbus.FieldMember: dbus.MakeVariant("Ping"),
		},
	}
	if decodeStateChange(methodCall) != nil {
		t.Error("method call should not decode to a state change")
	}
	if decodeStateChange(nil) != nil {
		t.Error("nil message should not decode to a state change")
	}

	otherSignal := &dbus.Message{
		Type: dbus.TypeSignal,
		Headers: map[dbus.HeaderField]dbus.Variant{
			dbus.FieldInterface: dbus.MakeVariant("org.freedesktop.DBus"),
			dbus.FieldMember:    dbus.MakeVariant("NameOwnerChanged"),
		},
		Body: []interface{}{"a", "b", "c"},
	}
	if decodeStateChange(otherSignal) != nil {
		t.Error("unrelated signal should not decode to a state change")
	}
}

func TestMonitorPumpAndProcess(t *testing.T) {
	events := make(chan *dbus.Message, 8)
	m, err := newMonitor(nil, events)
	if err != nil {
		t.Fatalf("newMonitor: %v", err)
	}
	defer m.Close()

	unitPath := dbus.ObjectPath("/org/freedesktop/systemd1/unit/pump_2eservice")
	events <- propertiesChanged(unitPath, UnitInterface, map[string]dbus.Variant{
		"SubState": dbus.MakeVariant("dead"),
	})

	// The readiness descriptor must become readable once the pump has
	// queued the message.
	fds := []unix.PollFd{{Fd: int32(m.Descriptor()), Events: unix.POLLIN}}
	deadline := time.Now().Add(5 * time.Second)
	for {
		n, err := unix.Poll(fds, 100)
		if err != nil && err != unix.EINTR {
			t.Fatalf("poll: %v", err)
		}
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("monitor descriptor never became readable")
		}
	}

	change, err := m.Process()
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if change == nil || change.SubState != "dead" {
		t.Fatalf("expected substate dead, got %+v", change)
	}
}

func TestMonitorCloseUnblocksReader(t *testing.T) {
	events := make(chan *dbus.Message, 1)
	m, err := newMonitor(nil, events)
	if err != nil {
		t.Fatalf("newMonitor: %v", err)
	}

	close(events)
	m.Close()

	// After close, Process fails instead of blocking forever.
	if _, err := m.Process(); err == nil {
		t.Error("expected error from Process after Close")
	}
}
