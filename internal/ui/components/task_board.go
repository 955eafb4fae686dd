package components

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ldi/dayplan/pkg/models"
)

var (
	openTaskStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1)

	doneTaskStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("42")).
			Padding(0, 1)

	boardHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("252")).
				Padding(0, 1)

	subTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	timeSlotStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	placeholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true).
				Padding(0, 1)
)

// TaskBoard renders a task set as an "Open" box and a "Done" box.
type TaskBoard struct {
	Width int
	Title string

	open []models.Task
	done []models.Task
}

func NewTaskBoard(width int) *TaskBoard {
	return &TaskBoard{
		Width: width,
		Title: "Tasks",
	}
}

// SetTasks replaces the board contents. Tasks are shown by time slot, then
// name, since snapshots carry no order of their own.
func (b *TaskBoard) SetTasks(tasks []models.Task) {
	sorted := make([]models.Task, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].TimeSlot != sorted[j].TimeSlot {
			return sorted[i].TimeSlot < sorted[j].TimeSlot
		}
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].ID < sorted[j].ID
	})

	b.open = b.open[:0]
	b.done = b.done[:0]
	for _, t := range sorted {
		if t.IsCompleted {
			b.done = append(b.done, t)
		} else {
			b.open = append(b.open, t)
		}
	}
}

func (b *TaskBoard) View() string {
	var boxes []string

	if len(b.open) > 0 {
		boxes = append(boxes, b.renderBox(fmt.Sprintf("Open (%d)", len(b.open)), b.open, openTaskStyle, "☐"))
	}

	if len(b.done) > 0 {
		boxes = append(boxes, b.renderBox(fmt.Sprintf("Done (%d)", len(b.done)), b.done, doneTaskStyle, "☑"))
	}

	var content string
	if len(boxes) == 0 {
		content = placeholderStyle.Render("No tasks yet")
	} else {
		content = strings.Join(boxes, "\n")
	}

	result := content
	if b.Title != "" {
		result = boardHeaderStyle.Render(b.Title) + "\n" + content
	}
	return result
}

func (b *TaskBoard) renderBox(title string, tasks []models.Task, style lipgloss.Style, icon string) string {
	boxWidth := b.Width

	subTitle := subTitleStyle.Foreground(style.GetForeground()).Render(title)

	innerWidth := boxWidth - 4
	if innerWidth < 0 {
		innerWidth = 0
	}

	nameWidth := innerWidth - 2
	if nameWidth < 0 {
		nameWidth = 0
	}

	var lines []string
	for _, t := range tasks {
		label := t.Name
		if t.TimeSlot != "" {
			label += " " + timeSlotStyle.Render("@ "+t.TimeSlot)
		}
		lines = append(lines, wrapWithPrefix(label, icon+" ", "  ", nameWidth)...)

		for _, st := range t.SubTasks {
			lines = append(lines, wrapWithPrefix(st.Name, "  • ", "    ", nameWidth-2)...)
		}
	}

	// Width excludes the border.
	frameWidth := boxWidth - 2
	if frameWidth < 0 {
		frameWidth = 0
	}

	body := strings.Join(lines, "\n")
	return style.Width(frameWidth).Render(subTitle + "\n" + body)
}

func wrapWithPrefix(text, first, rest string, width int) []string {
	if width < 1 {
		width = 1
	}
	wrapped := lipgloss.NewStyle().Width(width).Render(text)
	parts := strings.Split(wrapped, "\n")
	for i, line := range parts {
		if i == 0 {
			parts[i] = first + line
		} else {
			parts[i] = rest + line
		}
	}
	return parts
}
