package session

import (
	"errors"
	"testing"
)

func TestCreateAndGet(t *testing.T) {
	m := NewManager()
	s := m.Create("room-1", "voice-agent")

	if s.ID == "" {
		t.Fatalf("session ID empty")
	}
	if s.State != StateCreated {
		t.Fatalf("state = %q, want %q", s.State, StateCreated)
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get error = %v", err)
	}
	if got.Room != "room-1" || got.Identity != "voice-agent" {
		t.Fatalf("got %+v", got)
	}
}

func TestGetUnknownSession(t *testing.T) {
	m := NewManager()
	if _, err := m.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStateTransitions(t *testing.T) {
	m := NewManager()
	s := m.Create("room-1", "voice-agent")

	for _, state := range []State{StateTokenIssued, StateConnected, StatePipelineRunning, StateStopped} {
		if err := m.SetState(s.ID, state); err != nil {
			t.Fatalf("SetState(%q) error = %v", state, err)
		}
	}

	got, _ := m.Get(s.ID)
	if got.State != StateStopped {
		t.Fatalf("state = %q, want %q", got.State, StateStopped)
	}

	// Terminal states stick.
	if err := m.SetState(s.ID, StateConnected); err != nil {
		t.Fatalf("SetState after stop error = %v", err)
	}
	got, _ = m.Get(s.ID)
	if got.State != StateStopped {
		t.Fatalf("state after terminal = %q, want %q", got.State, StateStopped)
	}
}

func TestFailRecordsCause(t *testing.T) {
	m := NewManager()
	s := m.Create("room-1", "voice-agent")

	if err := m.Fail(s.ID, errors.New("connect refused")); err != nil {
		t.Fatalf("Fail error = %v", err)
	}
	got, _ := m.Get(s.ID)
	if got.State != StateFailed {
		t.Fatalf("state = %q, want %q", got.State, StateFailed)
	}
	if got.Error != "connect refused" {
		t.Fatalf("error = %q", got.Error)
	}
}

func TestActiveCountIgnoresTerminalSessions(t *testing.T) {
	m := NewManager()
	a := m.Create("room-a", "voice-agent")
	b := m.Create("room-b", "voice-agent")
	m.Create("room-c", "voice-agent")

	if err := m.SetState(a.ID, StateStopped); err != nil {
		t.Fatalf("SetState error = %v", err)
	}
	if err := m.Fail(b.ID, errors.New("boom")); err != nil {
		t.Fatalf("Fail error = %v", err)
	}

	if n := m.ActiveCount(); n != 1 {
		t.Fatalf("ActiveCount = %d, want 1", n)
	}
	if n := len(m.List()); n != 3 {
		t.Fatalf("List length = %d, want 3", n)
	}
}

func TestTwoSessionsMayShareOneRoom(t *testing.T) {
	m := NewManager()
	a := m.Create("room-1", "voice-agent")
	b := m.Create("room-1", "voice-agent")
	if a.ID == b.ID {
		t.Fatalf("sessions share an ID")
	}
	if m.ActiveCount() != 2 {
		t.Fatalf("ActiveCount = %d, want 2", m.ActiveCount())
	}
}
