package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/bpmonitor/internal/history"
)

// handleHistory serves the dashboard endpoint. The debug flag takes
// precedence over everything else; an id switches to the detail view;
// otherwise a page of summaries is returned.
func handleHistory(svc HistoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := history.RequestFromValues(r.URL.Query())

		switch {
		case req.Debug:
			WriteJSON(w, http.StatusOK, svc.Debug(r.Context()))
		case req.ID != "":
			writeDetail(w, r, svc, req.ID)
		default:
			page, err := svc.List(r.Context(), req)
			if err != nil {
				WriteError(w, err)
				return
			}
			WriteJSON(w, http.StatusOK, page)
		}
	}
}

func handleInstance(svc HistoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, r, svc, chi.URLParam(r, "id"))
	}
}

func writeDetail(w http.ResponseWriter, r *http.Request, svc HistoryService, id string) {
	detail, err := svc.Detail(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, detail)
}
