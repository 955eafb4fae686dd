package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ldi/dayplan/pkg/models"
)

var (
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	scrollbarTrackStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("236"))

	scrollbarHandleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))
)

// TaskFeed shows the latest task snapshot in a scrollable viewport.
type TaskFeed struct {
	viewport viewport.Model
	board    *TaskBoard
	status   string
	err      error
	ready    bool
}

func NewTaskFeed(width, height int) *TaskFeed {
	return &TaskFeed{
		viewport: viewport.New(width, height),
		board:    NewTaskBoard(width),
	}
}

func (f *TaskFeed) SetSize(width, height int) {
	vpWidth := width
	if width > 0 {
		vpWidth = width - 1
	}
	if !f.ready {
		f.viewport = viewport.New(vpWidth, height)
		f.ready = true
	} else {
		f.viewport.Width = vpWidth
		f.viewport.Height = height
	}
	f.board.Width = vpWidth
	f.updateContent()
}

// SetSnapshot shows tasks, or err when the snapshot could not be read.
func (f *TaskFeed) SetSnapshot(tasks []models.Task, err error) {
	f.board.SetTasks(tasks)
	f.err = err
	f.updateContent()
}

func (f *TaskFeed) SetStatus(status string) {
	f.status = status
	f.updateContent()
}

func (f *TaskFeed) updateContent() {
	var sb strings.Builder
	sb.WriteString(f.board.View())
	if f.err != nil {
		sb.WriteString("\n")
		sb.WriteString(errorStyle.Render(fmt.Sprintf("error: %v", f.err)))
	}
	if f.status != "" {
		sb.WriteString("\n")
		sb.WriteString(statusStyle.Render(fmt.Sprintf("--- %s ---", f.status)))
	}
	f.viewport.SetContent(sb.String())
}

func (f *TaskFeed) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.viewport, cmd = f.viewport.Update(msg)
	return cmd
}

func (f *TaskFeed) View() string {
	if !f.ready {
		return ""
	}

	if f.viewport.TotalLineCount() <= f.viewport.Height {
		return f.viewport.View()
	}

	h := f.viewport.Height
	percent := f.viewport.ScrollPercent()

	handlePos := int(float64(h-1) * percent)

	var sb strings.Builder
	for i := 0; i < h; i++ {
		if i == handlePos {
			sb.WriteString(scrollbarHandleStyle.Render("┃"))
		} else {
			sb.WriteString(scrollbarTrackStyle.Render("│"))
		}
		if i < h-1 {
			sb.WriteString("\n")
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, f.viewport.View(), sb.String())
}
