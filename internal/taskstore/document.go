package taskstore

import (
	"encoding/json"
	"fmt"

	"github.com/ldi/dayplan/pkg/models"
)

// taskDocument is the stored field set of a task. The id is the document
// key and is not part of the fields.
type taskDocument struct {
	Name        string            `json:"name"`
	IsCompleted bool              `json:"isCompleted"`
	TimeSlot    string            `json:"timeSlot"`
	SubTasks    []subTaskDocument `json:"subTasks"`
}

type subTaskDocument struct {
	Name string `json:"name"`
}

func encodeTask(t models.Task) (json.RawMessage, error) {
	doc := taskDocument{
		Name:        t.Name,
		IsCompleted: t.IsCompleted,
		TimeSlot:    t.TimeSlot,
		SubTasks:    make([]subTaskDocument, len(t.SubTasks)),
	}
	for i, st := range t.SubTasks {
		doc.SubTasks[i] = subTaskDocument{Name: st.Name}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task: %w", err)
	}
	return data, nil
}

// decodeTask tolerates missing fields; they take their zero values.
func decodeTask(d *models.Document) (models.Task, error) {
	var doc taskDocument
	if err := json.Unmarshal(d.Fields, &doc); err != nil {
		return models.Task{}, fmt.Errorf("failed to decode task %s: %w", d.ID, err)
	}

	t := models.Task{
		ID:          d.ID,
		Name:        doc.Name,
		IsCompleted: doc.IsCompleted,
		TimeSlot:    doc.TimeSlot,
		SubTasks:    make([]models.SubTask, len(doc.SubTasks)),
	}
	for i, st := range doc.SubTasks {
		t.SubTasks[i] = models.SubTask{Name: st.Name}
	}
	return t, nil
}
