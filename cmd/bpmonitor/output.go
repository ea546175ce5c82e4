package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/pitabwire/bpmonitor/model"
)

var (
	headerStyle = color.New(color.FgCyan, color.Bold)
	okStyle     = color.New(color.FgGreen)
	runStyle    = color.New(color.FgYellow)
	errStyle    = color.New(color.FgRed, color.Bold)
	mutedStyle  = color.New(color.FgHiBlack)
)

const (
	checkmark = "✓"
	xmark     = "✗"
	bullet    = "•"
)

func statusStyle(s model.Status) *color.Color {
	switch s {
	case model.StatusCompleted:
		return okStyle
	case model.StatusRunning:
		return runStyle
	case model.StatusError:
		return errStyle
	default:
		return mutedStyle
	}
}

// writeJSON writes v indented, with Unicode and markup left unescaped.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printPage renders a history page as a table followed by the errors of
// failed instances.
func printPage(w io.Writer, page model.HistoryPage) {
	headerStyle.Fprintf(w, "%-24s %-10s %-19s %-8s %s\n", "ID", "STATUS", "STARTED", "USER", "NAME")
	for _, s := range page.Logs {
		fmt.Fprintf(w, "%-24s ", s.ID)
		statusStyle(s.Status).Fprintf(w, "%-10s", s.Status)
		fmt.Fprintf(w, " %-19s %-8s %s\n", dash(s.Started), dash(s.UserID), s.Name)
		for _, e := range s.Errors {
			errStyle.Fprintf(w, "  %s %s\n", xmark, e)
		}
	}
	mutedStyle.Fprintf(w, "%d instance(s), limit %d, offset %d\n", page.Count, page.Limit, page.Offset)
}

// printCounts renders the table-count report sorted by table name.
func printCounts(w io.Writer, counts model.TableCounts) {
	tables := make([]string, 0, len(counts.TableCounts))
	for t := range counts.TableCounts {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	for _, t := range tables {
		switch v := counts.TableCounts[t].(type) {
		case string:
			fmt.Fprintf(w, "%-28s ", t)
			errStyle.Fprintln(w, v)
		default:
			fmt.Fprintf(w, "%-28s %v\n", t, v)
		}
	}
}

// printDetail renders one instance with its tasks and history.
func printDetail(w io.Writer, d model.InstanceDetail) {
	headerStyle.Fprintf(w, "%s  ", d.ID)
	statusStyle(d.Status).Fprintln(w, d.Status)

	fmt.Fprintf(w, "template:   %s (%s)\n", d.TemplateName, dash(d.TemplateID))
	fmt.Fprintf(w, "document:   %s\n", dash(strings.Join(d.DocumentID, " / ")))
	fmt.Fprintf(w, "started:    %s by %s\n", dash(d.Started), dash(d.StartedBy))
	fmt.Fprintf(w, "modified:   %s\n", dash(d.Modified))
	for _, e := range d.Errors {
		errStyle.Fprintf(w, "  %s %s\n", xmark, e)
	}

	if len(d.Tasks) > 0 {
		headerStyle.Fprintln(w, "\nTasks")
		for _, t := range d.Tasks {
			fmt.Fprintf(w, "  %s %s [%s] status=%s users=%s %s\n",
				bullet, t.Name, t.Activity, dash(t.Status), dash(strings.Join(t.UserIDs, ",")), dash(t.Modified))
		}
	}

	headerStyle.Fprintln(w, "\nHistory")
	for _, h := range d.History {
		line := fmt.Sprintf("  %s  %-2s %s", dash(h.Modified), h.Type, h.Name)
		if h.ActionName != "" {
			line += " (" + h.ActionName + ")"
		}
		if h.Note != "" {
			line += ": " + h.Note
		}
		if h.Type.IsError() {
			errStyle.Fprintln(w, line)
		} else {
			fmt.Fprintln(w, line)
		}
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
