package components

import (
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/ldi/dayplan/pkg/models"
)

func sampleTasks() []models.Task {
	return []models.Task{
		{ID: "b", Name: "Write report", TimeSlot: "Monday 9am", SubTasks: []models.SubTask{{Name: "Outline"}, {Name: "Draft"}}},
		{ID: "a", Name: "Gym", TimeSlot: "Monday 7am", IsCompleted: true},
	}
}

func TestTaskBoard(t *testing.T) {
	b := NewTaskBoard(80)
	b.SetTasks(sampleTasks())

	view := b.View()

	if !strings.Contains(view, "Tasks") {
		t.Errorf("expected view to contain title")
	}
	if !strings.Contains(view, "Open (1)") {
		t.Errorf("expected view to contain Open box")
	}
	if !strings.Contains(view, "Done (1)") {
		t.Errorf("expected view to contain Done box")
	}
	if !strings.Contains(view, "☐ Write report") {
		t.Errorf("expected view to contain open task")
	}
	if !strings.Contains(view, "☑ Gym") {
		t.Errorf("expected view to contain completed task")
	}

	outline := strings.Index(view, "• Outline")
	draft := strings.Index(view, "• Draft")
	if outline == -1 || draft == -1 || outline > draft {
		t.Errorf("expected sub-tasks in order, got indices %d, %d", outline, draft)
	}
}

func TestTaskBoardEmptyState(t *testing.T) {
	b := NewTaskBoard(80)
	view := b.View()
	if !strings.Contains(view, "No tasks yet") {
		t.Errorf("expected placeholder when no tasks")
	}

	b.SetTasks([]models.Task{{ID: "x", Name: "Only", TimeSlot: "Now"}})
	view = b.View()
	if strings.Contains(view, "Done") {
		t.Errorf("expected NO Done box when nothing is completed")
	}
}

func TestTaskBoardOrdersBySlot(t *testing.T) {
	b := NewTaskBoard(80)
	b.SetTasks([]models.Task{
		{ID: "1", Name: "Late", TimeSlot: "b"},
		{ID: "2", Name: "Early", TimeSlot: "a"},
	})

	view := b.View()
	if strings.Index(view, "Early") > strings.Index(view, "Late") {
		t.Errorf("expected tasks ordered by time slot")
	}
}

func TestTaskBoardWidth(t *testing.T) {
	width := 24
	b := NewTaskBoard(width)
	b.SetTasks([]models.Task{{ID: "1", Name: "a task with a rather long name", TimeSlot: "Sometime next week"}})

	for _, line := range strings.Split(b.View(), "\n") {
		if line == "" {
			continue
		}
		if w := lipgloss.Width(line); w > width {
			t.Errorf("line too wide: %d > %d. Line: %q", w, width, line)
		}
	}
}

func TestTaskFeed(t *testing.T) {
	f := NewTaskFeed(80, 20)
	f.SetSize(80, 20)

	f.SetSnapshot(sampleTasks(), nil)
	f.SetStatus("live")

	view := f.View()
	if !strings.Contains(view, "Write report") {
		t.Errorf("expected view to contain task")
	}
	if !strings.Contains(view, "--- live ---") {
		t.Errorf("expected view to contain status message")
	}

	f.SetSnapshot(nil, errors.New("backend offline"))
	view = f.View()
	if strings.Contains(view, "Write report") {
		t.Errorf("expected tasks to be replaced by the new snapshot")
	}
	if !strings.Contains(view, "backend offline") {
		t.Errorf("expected error in view")
	}
}

func TestTaskFeedScrollbar(t *testing.T) {
	width, height := 30, 5
	f := NewTaskFeed(width, height)
	f.SetSize(width, height)

	var tasks []models.Task
	for i := 0; i < 10; i++ {
		tasks = append(tasks, models.Task{ID: string(rune('a' + i)), Name: "task", TimeSlot: "x"})
	}
	f.SetSnapshot(tasks, nil)

	view := f.View()
	if !strings.Contains(view, "┃") {
		t.Errorf("expected view to contain scrollbar handle '┃'")
	}
	if !strings.Contains(view, "│") {
		t.Errorf("expected view to contain scrollbar track '│'")
	}
}

func TestTaskFeedNoScrollbar(t *testing.T) {
	f := NewTaskFeed(40, 20)
	f.SetSize(40, 20)
	f.SetSnapshot([]models.Task{{ID: "1", Name: "short", TimeSlot: "x"}}, nil)

	view := f.View()
	if strings.Contains(view, "┃") {
		t.Errorf("expected view to NOT contain scrollbar handle when content fits")
	}
}
