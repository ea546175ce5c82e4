package model

import "time"

// HistoryEntry is one full b_bp_tracking row, used by the detail view.
type HistoryEntry struct {
	ID              string    `json:"id"`
	Type            EventType `json:"type"`
	Name            string    `json:"name"`
	ActionName      string    `json:"action_name"`
	Modified        string    `json:"modified"`
	UserID          string    `json:"user_id"`
	ExecutionStatus string    `json:"execution_status"`
	ExecutionResult string    `json:"execution_result"`
	Note            string    `json:"note"`
}

// TaskRow is a b_bp_task row joined with one of its assignees. UserID is
// empty when the task has none.
type TaskRow struct {
	ID       string
	Name     string
	Activity string
	Status   string
	Modified *time.Time
	UserID   string
}

// Task is a workflow task with all of its assignees.
type Task struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Activity string   `json:"activity"`
	Status   string   `json:"status"`
	Modified string   `json:"modified"`
	UserIDs  []string `json:"user_ids"`
}

// InstanceDetail is the response of the detail view.
type InstanceDetail struct {
	Success      bool           `json:"success"`
	ID           string         `json:"id"`
	TemplateID   string         `json:"template_id"`
	TemplateName string         `json:"template_name"`
	DocumentID   DocumentRef    `json:"document_id"`
	Started      string         `json:"started"`
	StartedBy    string         `json:"started_by"`
	Status       Status         `json:"status"`
	Errors       []string       `json:"errors"`
	Modified     string         `json:"modified"`
	Tasks        []Task         `json:"tasks"`
	History      []HistoryEntry `json:"history"`
}
