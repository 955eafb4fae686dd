package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ldi/dayplan/internal/taskstore"
	"github.com/ldi/dayplan/internal/ui/components"
)

var helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

type snapshotMsg taskstore.Snapshot

type streamClosedMsg struct{}

// WatchModel renders a live task listing until the user quits or the
// subscription ends.
type WatchModel struct {
	sub      *taskstore.SnapshotSubscription
	feed     *components.TaskFeed
	updates  int
	quitting bool
}

func NewWatchModel(sub *taskstore.SnapshotSubscription) WatchModel {
	feed := components.NewTaskFeed(80, 20)
	feed.SetSize(80, 20)
	feed.SetStatus("waiting for tasks")
	return WatchModel{sub: sub, feed: feed}
}

func (m WatchModel) Init() tea.Cmd {
	return waitForSnapshot(m.sub)
}

func waitForSnapshot(sub *taskstore.SnapshotSubscription) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-sub.C()
		if !ok {
			return streamClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.sub.Close()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.feed.SetSize(msg.Width, msg.Height-2)
		return m, nil

	case snapshotMsg:
		m.updates++
		m.feed.SetSnapshot(msg.Tasks, msg.Err)
		m.feed.SetStatus("live")
		return m, waitForSnapshot(m.sub)

	case streamClosedMsg:
		m.feed.SetStatus("stream closed")
		m.quitting = true
		return m, tea.Quit
	}

	return m, m.feed.Update(msg)
}

func (m WatchModel) View() string {
	if m.quitting {
		return m.feed.View() + "\n"
	}
	return m.feed.View() + "\n" + helpStyle.Render("(arrow keys to scroll, q to quit)") + "\n"
}

// RunWatch shows sub until the user quits. It closes sub on return.
func RunWatch(sub *taskstore.SnapshotSubscription) error {
	defer sub.Close()
	p := tea.NewProgram(NewWatchModel(sub))
	_, err := p.Run()
	return err
}
