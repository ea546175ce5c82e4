package history

import "github.com/pitabwire/bpmonitor/model"

// Resolve derives the consolidated status of an instance. The error list
// holds the actions of error events in event order and is never nil.
//
// Precedence: any error event or the terminated state gives error, then
// running or paused gives running, completed gives completed, anything else
// is unknown.
func Resolve(state model.InstanceState, events []model.TrackingEvent) (model.Status, []string) {
	errs := []string{}
	for _, e := range events {
		if e.Type.IsError() {
			errs = append(errs, e.Action)
		}
	}

	switch {
	case len(errs) > 0 || state == model.StateTerminated:
		return model.StatusError, errs
	case state.IsActive():
		return model.StatusRunning, errs
	case state == model.StateCompleted:
		return model.StatusCompleted, errs
	default:
		return model.StatusUnknown, errs
	}
}
