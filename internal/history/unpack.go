package history

import (
	"strings"

	"github.com/pitabwire/bpmonitor/model"
)

// UnpackTrail decodes a packed trail. Pieces are separated by
// model.EventSeparator and fields by model.FieldSeparator; the action keeps
// any further field separators. Pieces with fewer than three fields are
// dropped. Order is preserved.
func UnpackTrail(packed string) []model.TrackingEvent {
	events, _ := unpackTrail(packed)
	return events
}

// unpackTrail is UnpackTrail that also reports how many pieces it dropped.
func unpackTrail(packed string) ([]model.TrackingEvent, int) {
	events := []model.TrackingEvent{}
	if packed == "" {
		return events, 0
	}

	dropped := 0
	for _, piece := range strings.Split(packed, model.EventSeparator) {
		fields := strings.SplitN(piece, model.FieldSeparator, 3)
		if len(fields) < 3 {
			dropped++
			continue
		}
		events = append(events, model.TrackingEvent{
			Time:   fields[0],
			Type:   model.ParseEventType(fields[1]),
			Action: fields[2],
		})
	}
	return events, dropped
}

// PackTrail encodes events in the format read by UnpackTrail.
func PackTrail(events []model.TrackingEvent) string {
	pieces := make([]string, len(events))
	for i, e := range events {
		pieces[i] = e.Time + model.FieldSeparator + e.Type.String() + model.FieldSeparator + e.Action
	}
	return strings.Join(pieces, model.EventSeparator)
}

// GroupRows folds consecutive rows of the same instance into one trail, in
// the order received. Rows carrying a packed trail are unpacked.
func GroupRows(rows []model.AuditRow) []model.InstanceTrail {
	trails, _ := groupRows(rows)
	return trails
}

// groupRows is GroupRows that also reports dropped packed pieces.
func groupRows(rows []model.AuditRow) ([]model.InstanceTrail, int) {
	trails := []model.InstanceTrail{}
	dropped := 0

	for _, row := range rows {
		n := len(trails)
		if n == 0 || trails[n-1].Instance.ID != row.Instance.ID {
			trails = append(trails, model.InstanceTrail{
				Instance: row.Instance,
				Events:   []model.TrackingEvent{},
			})
			n++
		}
		t := &trails[n-1]

		if row.Packed != "" {
			events, d := unpackTrail(row.Packed)
			t.Events = append(t.Events, events...)
			dropped += d
		}
		if row.Event != nil {
			t.Events = append(t.Events, *row.Event)
		}
	}
	return trails, dropped
}
