// Package model holds the domain types shared by the audit store, the history
// service and the HTTP transport.
package model

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the timestamp format used for every time value emitted by the
// service. It matches the format Bitrix24 stores in its audit tables.
const TimeLayout = "2006-01-02 15:04:05"

// Delimiters of a packed audit trail: events are joined by EventSeparator and
// the fields of one event (time, type, action) by FieldSeparator.
const (
	EventSeparator = ";;;"
	FieldSeparator = "|"
)

// InstanceState is the raw workflow status code stored on
// b_bp_workflow_instance.
type InstanceState int

// Known workflow states.
const (
	StateRunning    InstanceState = 1
	StatePaused     InstanceState = 2
	StateTerminated InstanceState = 3
	StateCompleted  InstanceState = 4
)

// IsActive reports whether the workflow is still executing or paused.
func (s InstanceState) IsActive() bool {
	return s == StateRunning || s == StatePaused
}

// EventType is the type code of a b_bp_tracking row.
type EventType int

// Tracking event types the service distinguishes.
const (
	EventTypeUnknown EventType = 0
	EventTypeError   EventType = 6
)

// ParseEventType converts a type code read as text. Non-numeric codes map to
// EventTypeUnknown.
func ParseEventType(s string) EventType {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return EventTypeUnknown
	}
	return EventType(n)
}

// IsError reports whether the event records a failure.
func (t EventType) IsError() bool {
	return t == EventTypeError
}

// String returns the numeric code as text.
func (t EventType) String() string {
	return strconv.Itoa(int(t))
}

// MarshalJSON encodes the type as its numeric code in a string.
func (t EventType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts the code as a string or a number.
func (t *EventType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = ParseEventType(s)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = EventType(n)
	return nil
}

// Status is the consolidated status shown on the dashboard.
type Status string

// Consolidated statuses.
const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusUnknown   Status = "unknown"
)

// TrackingEvent is one entry of a workflow's audit trail.
type TrackingEvent struct {
	Time   string    `json:"time"`
	Type   EventType `json:"type"`
	Action string    `json:"action"`
}

// InstanceRow is a workflow instance as read from the audit store, with its
// template name already joined.
type InstanceRow struct {
	ID           string
	TemplateName string
	Started      *time.Time
	StartedBy    string
	DocumentID   string
	Modified     *time.Time
	State        InstanceState
	TemplateID   string
}

// AuditRow is one row returned by the list query. In row mode Event carries a
// single tracking event (nil for instances without events). In packed mode
// Packed holds the whole trail encoded as one string.
type AuditRow struct {
	Instance InstanceRow
	Event    *TrackingEvent
	Packed   string
}

// InstanceTrail is an instance together with its newest-first events.
type InstanceTrail struct {
	Instance InstanceRow
	Events   []TrackingEvent
}

// InstanceSummary is the per-instance view returned by the history endpoint.
type InstanceSummary struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Status       Status          `json:"status"`
	Started      string          `json:"started"`
	UserID       string          `json:"user_id"`
	DocumentID   DocumentRef     `json:"document_id"`
	Errors       []string        `json:"errors"`
	LastActivity string          `json:"last_activity"`
	TemplateID   string          `json:"template_id"`
	Tracking     []TrackingEvent `json:"tracking"`
}

// HistoryPage is the envelope for a page of summaries.
type HistoryPage struct {
	Success bool              `json:"success"`
	Logs    []InstanceSummary `json:"logs"`
	Count   int               `json:"count"`
	Limit   int               `json:"limit"`
	Offset  int               `json:"offset"`
}

// TableCounts is the debug-mode report. Values are either an int64 row count
// or an "Error: ..." string.
type TableCounts struct {
	Success     bool           `json:"success"`
	Debug       bool           `json:"debug"`
	TableCounts map[string]any `json:"table_counts"`
}

// DocumentRef is a document identifier passed through from the audit store.
// Bitrix stores composite document ids as JSON arrays; those are emitted as
// arrays, everything else as a plain string.
type DocumentRef []string

// ParseDocumentRef interprets a raw DOCUMENT_ID value.
func ParseDocumentRef(raw string) DocumentRef {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") {
		var parts []string
		if err := json.Unmarshal([]byte(trimmed), &parts); err == nil && len(parts) > 0 {
			return DocumentRef(parts)
		}
	}
	return DocumentRef{raw}
}

// IsComposite reports whether the reference has more than one part.
func (d DocumentRef) IsComposite() bool {
	return len(d) > 1
}

// MarshalJSON emits a string for scalar references and an array otherwise.
func (d DocumentRef) MarshalJSON() ([]byte, error) {
	switch len(d) {
	case 0:
		return json.Marshal("")
	case 1:
		return json.Marshal(d[0])
	default:
		return json.Marshal([]string(d))
	}
}

// UnmarshalJSON accepts either a string or an array of strings.
func (d *DocumentRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*d = DocumentRef{s}
		return nil
	}
	var parts []string
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	*d = DocumentRef(parts)
	return nil
}

// FormatTime renders an optional timestamp with TimeLayout, or "" when nil.
func FormatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}
