package models

// SubTask is a name-only checklist item stored inline in its parent Task.
type SubTask struct {
	Name string `json:"name"`
}

// Task is a single entry in a user's task collection.
//
// ID is empty until the backend has accepted the task; after that it is the
// document key and never changes.
type Task struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	IsCompleted bool      `json:"isCompleted"`
	TimeSlot    string    `json:"timeSlot"`
	SubTasks    []SubTask `json:"subTasks"`
}

// SubTaskNames returns the sub-task names in order.
func (t Task) SubTaskNames() []string {
	names := make([]string, len(t.SubTasks))
	for i, st := range t.SubTasks {
		names[i] = st.Name
	}
	return names
}
