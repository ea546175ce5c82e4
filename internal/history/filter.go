package history

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/pitabwire/bpmonitor/model"
)

// Request is a history request as received from the client. Numeric fields
// stay unparsed so Compile can apply the defaulting rules.
type Request struct {
	Limit  string
	Offset string
	Status string
	Search string
	Debug  bool
	ID     string
}

// RequestFromValues reads a Request from URL query parameters. The debug
// flag is set by the presence of the parameter, whatever its value.
func RequestFromValues(v url.Values) Request {
	_, debug := v["debug"]
	return Request{
		Limit:  v.Get("limit"),
		Offset: v.Get("offset"),
		Status: v.Get("status"),
		Search: v.Get("search"),
		Debug:  debug,
		ID:     strings.TrimSpace(v.Get("id")),
	}
}

// Compile turns a Request into a Filter. A non-numeric limit or offset falls
// back to the default; a negative one is clamped to zero. Unrecognized
// status values and blank searches add no predicate.
func Compile(r Request, defaultLimit int) model.Filter {
	if defaultLimit <= 0 {
		defaultLimit = model.DefaultLimit
	}
	return model.Filter{
		Search: SearchPattern(r.Search),
		State:  StatePredicateFor(model.StatusFilter(strings.TrimSpace(r.Status))),
		Page: model.Page{
			Limit:  parseWindow(r.Limit, defaultLimit),
			Offset: parseWindow(r.Offset, model.DefaultOffset),
		},
	}
}

func parseWindow(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	if n < 0 {
		return 0
	}
	return n
}

// StatePredicateFor maps a status filter to raw state codes. The error
// filter also admits running, paused and completed instances that recorded
// an error event, matching what the status resolver reports as error.
func StatePredicateFor(s model.StatusFilter) *model.StatePredicate {
	switch s {
	case model.FilterRunning:
		return &model.StatePredicate{States: []model.InstanceState{model.StateRunning, model.StatePaused}}
	case model.FilterCompleted:
		return &model.StatePredicate{States: []model.InstanceState{model.StateCompleted}}
	case model.FilterError:
		return &model.StatePredicate{
			States:          []model.InstanceState{model.StateTerminated},
			WithErrorEvents: true,
			ErrorEventStates: []model.InstanceState{
				model.StateRunning, model.StatePaused, model.StateCompleted,
			},
		}
	default:
		return nil
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchPattern returns a LIKE pattern matching text as a substring, with
// wildcard characters escaped by a backslash. Blank text yields "".
func SearchPattern(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	return "%" + likeEscaper.Replace(text) + "%"
}
