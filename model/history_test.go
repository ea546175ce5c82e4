package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseEventType(t *testing.T) {
	tests := []struct {
		in   string
		want EventType
	}{
		{"6", EventTypeError},
		{" 6 ", EventTypeError},
		{"1", EventType(1)},
		{"", EventTypeUnknown},
		{"abc", EventTypeUnknown},
	}
	for _, tt := range tests {
		if got := ParseEventType(tt.in); got != tt.want {
			t.Errorf("ParseEventType(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestEventType_JSON(t *testing.T) {
	data, err := json.Marshal(TrackingEvent{Time: "t", Type: EventTypeError, Action: "a"})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	want := `{"time":"t","type":"6","action":"a"}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}

	var ev TrackingEvent
	if err := json.Unmarshal([]byte(`{"type":4}`), &ev); err != nil {
		t.Fatalf("unmarshal numeric type: %v", err)
	}
	if ev.Type != 4 {
		t.Errorf("type = %d, want 4", ev.Type)
	}
}

func TestInstanceState_IsActive(t *testing.T) {
	for _, s := range []InstanceState{StateRunning, StatePaused} {
		if !s.IsActive() {
			t.Errorf("state %d should be active", s)
		}
	}
	for _, s := range []InstanceState{StateTerminated, StateCompleted, 0, 9} {
		if s.IsActive() {
			t.Errorf("state %d should not be active", s)
		}
	}
}

func TestDocumentRef_scalar(t *testing.T) {
	ref := ParseDocumentRef("DEAL_42")
	if ref.IsComposite() {
		t.Error("scalar reference reported as composite")
	}
	data, _ := json.Marshal(ref)
	if string(data) != `"DEAL_42"` {
		t.Errorf("json = %s, want \"DEAL_42\"", data)
	}
}

func TestDocumentRef_composite(t *testing.T) {
	ref := ParseDocumentRef(`["crm","CCrmDocumentDeal","DEAL_42"]`)
	if !ref.IsComposite() {
		t.Fatal("expected composite reference")
	}
	data, _ := json.Marshal(ref)
	if string(data) != `["crm","CCrmDocumentDeal","DEAL_42"]` {
		t.Errorf("json = %s", data)
	}

	var back DocumentRef
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if len(back) != 3 || back[2] != "DEAL_42" {
		t.Errorf("back = %v", back)
	}
}

func TestDocumentRef_malformedArrayIsScalar(t *testing.T) {
	ref := ParseDocumentRef("[not json")
	if len(ref) != 1 || ref[0] != "[not json" {
		t.Errorf("ref = %v, want passthrough", ref)
	}
}

func TestDocumentRef_emptyMarshalsToEmptyString(t *testing.T) {
	data, _ := json.Marshal(DocumentRef(nil))
	if string(data) != `""` {
		t.Errorf("json = %s, want \"\"", data)
	}
}

func TestFormatTime(t *testing.T) {
	if got := FormatTime(nil); got != "" {
		t.Errorf("FormatTime(nil) = %q", got)
	}
	ts := time.Date(2024, 3, 5, 9, 7, 1, 0, time.UTC)
	if got := FormatTime(&ts); got != "2024-03-05 09:07:01" {
		t.Errorf("FormatTime() = %q", got)
	}
}
