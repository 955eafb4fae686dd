package taskstore

import (
	"errors"
	"strings"

	"github.com/ldi/dayplan/pkg/models"
)

var (
	ErrNameRequired     = errors.New("task name is required")
	ErrTimeSlotRequired = errors.New("time slot is required")
)

// Draft is a task being composed before its first Add. Sub-tasks can only
// be appended here; once the task exists they are replaced wholesale via
// Update.
type Draft struct {
	name     string
	timeSlot string
	subTasks []models.SubTask
}

func (d *Draft) SetName(name string) {
	d.name = name
}

func (d *Draft) SetTimeSlot(slot string) {
	d.timeSlot = slot
}

// AddSubTask appends a sub-task. Blank names are ignored.
func (d *Draft) AddSubTask(name string) {
	if strings.TrimSpace(name) == "" {
		return
	}
	d.subTasks = append(d.subTasks, models.SubTask{Name: name})
}

// SubTasks returns a copy of the pending sub-tasks in insertion order.
func (d *Draft) SubTasks() []models.SubTask {
	out := make([]models.SubTask, len(d.subTasks))
	copy(out, d.subTasks)
	return out
}

func (d *Draft) Reset() {
	*d = Draft{}
}

// Build returns the task to pass to Add. Name and time slot must not be
// blank.
func (d *Draft) Build() (models.Task, error) {
	if strings.TrimSpace(d.name) == "" {
		return models.Task{}, ErrNameRequired
	}
	if strings.TrimSpace(d.timeSlot) == "" {
		return models.Task{}, ErrTimeSlotRequired
	}
	return models.Task{
		Name:     d.name,
		TimeSlot: d.timeSlot,
		SubTasks: d.SubTasks(),
	}, nil
}
