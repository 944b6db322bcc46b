package gwmodel

import "testing"

func TestMTEventIsLocked(t *testing.T) {
	e := &MTEvent{Locked: []string{"source_addr", "data_coding"}}

	if !e.IsLocked("source_addr") {
		t.Error("expected source_addr to be locked")
	}
	if !e.IsLocked("data_coding") {
		t.Error("expected data_coding to be locked")
	}
	if e.IsLocked("dest_addr") {
		t.Error("expected dest_addr to not be locked")
	}
}

func TestMTEventIsLockedEmpty(t *testing.T) {
	e := &MTEvent{}
	if e.IsLocked("anything") {
		t.Error("expected no params locked on a zero-value MTEvent")
	}
}
