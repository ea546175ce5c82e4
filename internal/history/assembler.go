package history

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pitabwire/bpmonitor/model"
)

// MaxTrackingPreview caps the number of events shown per summary.
const MaxTrackingPreview = 10

// Assembler builds response bodies from resolved trails.
type Assembler struct {
	// UntitledName replaces a missing template name.
	UntitledName string
	// Preview is the number of newest events kept per summary.
	Preview int
}

func (a Assembler) preview() int {
	if a.Preview <= 0 || a.Preview > MaxTrackingPreview {
		return MaxTrackingPreview
	}
	return a.Preview
}

func (a Assembler) name(templateName string) string {
	if templateName == "" {
		return a.UntitledName
	}
	return templateName
}

// Summary builds the summary of one instance. Events must be newest first.
func (a Assembler) Summary(t model.InstanceTrail) model.InstanceSummary {
	status, errs := Resolve(t.Instance.State, t.Events)

	tracking := t.Events
	if n := a.preview(); len(tracking) > n {
		tracking = tracking[:n]
	}
	if tracking == nil {
		tracking = []model.TrackingEvent{}
	}

	return model.InstanceSummary{
		ID:           t.Instance.ID,
		Name:         a.name(t.Instance.TemplateName),
		Status:       status,
		Started:      model.FormatTime(t.Instance.Started),
		UserID:       t.Instance.StartedBy,
		DocumentID:   model.ParseDocumentRef(t.Instance.DocumentID),
		Errors:       errs,
		LastActivity: model.FormatTime(t.Instance.Modified),
		TemplateID:   t.Instance.TemplateID,
		Tracking:     tracking,
	}
}

// Page builds the paginated envelope. Count is the number of summaries on
// this page.
func (a Assembler) Page(trails []model.InstanceTrail, page model.Page) model.HistoryPage {
	logs := make([]model.InstanceSummary, 0, len(trails))
	for _, t := range trails {
		logs = append(logs, a.Summary(t))
	}
	return model.HistoryPage{
		Success: true,
		Logs:    logs,
		Count:   len(logs),
		Limit:   page.Limit,
		Offset:  page.Offset,
	}
}

// Detail builds the detail view of one instance. history must be newest
// first; tasks holds one row per assignee.
func (a Assembler) Detail(inst model.InstanceRow, history []model.HistoryEntry, tasks []model.TaskRow) model.InstanceDetail {
	events := make([]model.TrackingEvent, len(history))
	for i, h := range history {
		events[i] = model.TrackingEvent{Time: h.Modified, Type: h.Type, Action: h.ActionName}
	}
	status, errs := Resolve(inst.State, events)

	if history == nil {
		history = []model.HistoryEntry{}
	}

	return model.InstanceDetail{
		Success:      true,
		ID:           inst.ID,
		TemplateID:   inst.TemplateID,
		TemplateName: a.name(inst.TemplateName),
		DocumentID:   model.ParseDocumentRef(inst.DocumentID),
		Started:      model.FormatTime(inst.Started),
		StartedBy:    inst.StartedBy,
		Status:       status,
		Errors:       errs,
		Modified:     model.FormatTime(inst.Modified),
		Tasks:        GroupTasks(tasks),
		History:      history,
	}
}

// GroupTasks merges consecutive rows of the same task, collecting their
// assignees.
func GroupTasks(rows []model.TaskRow) []model.Task {
	tasks := []model.Task{}
	for _, r := range rows {
		n := len(tasks)
		if n == 0 || tasks[n-1].ID != r.ID {
			tasks = append(tasks, model.Task{
				ID:       r.ID,
				Name:     r.Name,
				Activity: r.Activity,
				Status:   r.Status,
				Modified: model.FormatTime(r.Modified),
				UserIDs:  []string{},
			})
			n++
		}
		if r.UserID != "" {
			tasks[n-1].UserIDs = append(tasks[n-1].UserIDs, r.UserID)
		}
	}
	return tasks
}

// RowCounter counts the rows of a table.
type RowCounter interface {
	CountRows(ctx context.Context, table string) (int64, error)
}

// CountTables counts every table concurrently, at most parallel at a time.
// A failed count is reported as "Error: <message>" for that table only; the
// other tables are unaffected. onError is called for each failure when set.
func CountTables(ctx context.Context, rc RowCounter, tables []string, parallel int, onError func(table string, err error)) map[string]any {
	counts := make(map[string]any, len(tables))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}

	for _, table := range tables {
		g.Go(func() error {
			n, err := rc.CountRows(gctx, table)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				counts[table] = "Error: " + err.Error()
				if onError != nil {
					onError(table, err)
				}
				return nil
			}
			counts[table] = n
			return nil
		})
	}

	_ = g.Wait()
	return counts
}
