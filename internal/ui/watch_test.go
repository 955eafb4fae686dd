package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ldi/dayplan/internal/stream"
	"github.com/ldi/dayplan/internal/taskstore"
	"github.com/ldi/dayplan/pkg/models"
)

func TestWatchModelShowsSnapshots(t *testing.T) {
	sub := stream.New[taskstore.Snapshot]()
	m := NewWatchModel(sub)

	sub.Publish(taskstore.Snapshot{Tasks: []models.Task{{ID: "1", Name: "Write report", TimeSlot: "Monday"}}})
	msg := m.Init()()
	if _, ok := msg.(snapshotMsg); !ok {
		t.Fatalf("expected snapshotMsg, got %T", msg)
	}

	model, cmd := m.Update(msg)
	m = model.(WatchModel)
	if cmd == nil {
		t.Error("expected a command waiting for the next snapshot")
	}
	if m.updates != 1 {
		t.Errorf("expected 1 update, got %d", m.updates)
	}
	if !strings.Contains(m.View(), "Write report") {
		t.Errorf("expected task in view: %s", m.View())
	}

	sub.Close()
	msg = cmd()
	if _, ok := msg.(streamClosedMsg); !ok {
		t.Fatalf("expected streamClosedMsg after close, got %T", msg)
	}
	model, _ = m.Update(msg)
	m = model.(WatchModel)
	if !m.quitting {
		t.Error("expected quitting after the stream closed")
	}
}

func TestWatchModelQuitClosesSubscription(t *testing.T) {
	sub := stream.New[taskstore.Snapshot]()
	m := NewWatchModel(sub)

	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = model.(WatchModel)
	if !m.quitting {
		t.Error("expected quitting true after 'q'")
	}
	if cmd == nil {
		t.Error("expected quit command")
	}
	if !sub.Closed() {
		t.Error("expected subscription to be closed")
	}
}
