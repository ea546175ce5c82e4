// Package auditstore reads workflow instances and their audit trail from the
// Bitrix24 business-process tables. PostgreSQL (pgx) and SQLite
// (go-sqlite3) are supported behind the same Store.
package auditstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/pitabwire/bpmonitor/internal/config"
	"github.com/pitabwire/bpmonitor/internal/observability"
	"github.com/pitabwire/bpmonitor/model"
)

// cursor is the subset of a result set the store consumes. pgx.Rows
// satisfies it directly; *sql.Rows is adapted by sqlCursor.
type cursor interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// conn is a driver connection pool.
type conn interface {
	query(ctx context.Context, sql string, args ...any) (cursor, error)
	exec(ctx context.Context, sql string) error
	ping(ctx context.Context) error
	close()
}

// Store runs the read-only audit queries.
type Store struct {
	conn      conn
	dialect   dialect
	trailMode string
	metrics   *observability.Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithTrailMode selects how the list query returns tracking events
// (config.TrailModeRows or config.TrailModePacked).
func WithTrailMode(mode string) Option {
	return func(s *Store) {
		if mode != "" {
			s.trailMode = mode
		}
	}
}

// WithMetrics records query counts and durations.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

func newStore(c conn, d dialect, opts ...Option) *Store {
	s := &Store{conn: c, dialect: d, trailMode: config.TrailModeRows}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Driver returns the dialect name.
func (s *Store) Driver() string {
	return s.dialect.name
}

// TrailMode returns the configured trail mode.
func (s *Store) TrailMode() string {
	return s.trailMode
}

// ListInstances returns one page of instances matching f with their
// tracking events, in the configured trail mode.
func (s *Store) ListInstances(ctx context.Context, f model.Filter) (rows []model.AuditRow, err error) {
	ctx, span, done := s.instrument(ctx, "list")
	span.SetAttributes(observability.AttrTrailMode.String(s.trailMode))
	defer func() { done(len(rows), err) }()

	packed := s.trailMode == config.TrailModePacked
	var q string
	var args []any
	if packed {
		q, args = renderListPacked(s.dialect, f)
	} else {
		q, args = renderListRows(s.dialect, f)
	}

	cur, err := s.conn.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query instances: %w", err)
	}
	defer cur.Close()

	for cur.Next() {
		var ir instanceScan
		dest := ir.dest()
		var row model.AuditRow
		if packed {
			var trail sql.NullString
			dest = append(dest, &trail)
			if err := cur.Scan(dest...); err != nil {
				return nil, fmt.Errorf("scan instance: %w", err)
			}
			row.Packed = trail.String
		} else {
			var ev eventScan
			dest = append(dest, ev.dest()...)
			if err := cur.Scan(dest...); err != nil {
				return nil, fmt.Errorf("scan instance: %w", err)
			}
			row.Event = ev.event()
		}
		row.Instance = ir.row()
		rows = append(rows, row)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances: %w", err)
	}
	return rows, nil
}

// CountRows returns the number of rows in table. The name must be a plain
// identifier.
func (s *Store) CountRows(ctx context.Context, table string) (n int64, err error) {
	ctx, span, done := s.instrument(ctx, "count")
	span.SetAttributes(observability.AttrTable.String(table))
	defer func() { done(1, err) }()

	q, err := renderCount(s.dialect, table)
	if err != nil {
		return 0, err
	}

	cur, err := s.conn.query(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	defer cur.Close()

	if !cur.Next() {
		if err := cur.Err(); err != nil {
			return 0, fmt.Errorf("count %s: %w", table, err)
		}
		return 0, fmt.Errorf("count %s: no result", table)
	}
	if err := cur.Scan(&n); err != nil {
		return 0, fmt.Errorf("scan count %s: %w", table, err)
	}
	return n, nil
}

// GetInstance returns a single instance. It returns a NOT_FOUND
// *model.ErrorEnvelope when no instance has the id.
func (s *Store) GetInstance(ctx context.Context, id string) (inst model.InstanceRow, err error) {
	ctx, span, done := s.instrument(ctx, "get_instance")
	span.SetAttributes(observability.AttrInstanceID.String(id))
	defer func() { done(1, err) }()

	q, args := renderGetInstance(s.dialect, id)
	cur, err := s.conn.query(ctx, q, args...)
	if err != nil {
		return model.InstanceRow{}, fmt.Errorf("query instance: %w", err)
	}
	defer cur.Close()

	if !cur.Next() {
		if err := cur.Err(); err != nil {
			return model.InstanceRow{}, fmt.Errorf("query instance: %w", err)
		}
		return model.InstanceRow{}, model.NewNotFoundError(
			fmt.Sprintf("workflow instance %q not found", id),
		)
	}
	var ir instanceScan
	if err := cur.Scan(ir.dest()...); err != nil {
		return model.InstanceRow{}, fmt.Errorf("scan instance: %w", err)
	}
	return ir.row(), nil
}

// ListEvents returns the full tracking history of an instance, newest first.
func (s *Store) ListEvents(ctx context.Context, id string) (entries []model.HistoryEntry, err error) {
	ctx, span, done := s.instrument(ctx, "list_events")
	span.SetAttributes(observability.AttrInstanceID.String(id))
	defer func() { done(len(entries), err) }()

	q, args := renderListEvents(s.dialect, id)
	cur, err := s.conn.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer cur.Close()

	for cur.Next() {
		var (
			eid, title, action, modified  sql.NullString
			user, execStatus, execResult sql.NullString
			note                         sql.NullString
			typ                          sql.NullInt64
		)
		if err := cur.Scan(&eid, &typ, &title, &action, &modified, &user, &execStatus, &execResult, &note); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		entries = append(entries, model.HistoryEntry{
			ID:              eid.String,
			Type:            model.EventType(typ.Int64),
			Name:            title.String,
			ActionName:      action.String,
			Modified:        modified.String,
			UserID:          user.String,
			ExecutionStatus: execStatus.String,
			ExecutionResult: execResult.String,
			Note:            note.String,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return entries, nil
}

// ListTasks returns the tasks of an instance, one row per assignee.
func (s *Store) ListTasks(ctx context.Context, id string) (tasks []model.TaskRow, err error) {
	ctx, span, done := s.instrument(ctx, "list_tasks")
	span.SetAttributes(observability.AttrInstanceID.String(id))
	defer func() { done(len(tasks), err) }()

	q, args := renderListTasks(s.dialect, id)
	cur, err := s.conn.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer cur.Close()

	for cur.Next() {
		var tid, name, activity, status, modified, user sql.NullString
		if err := cur.Scan(&tid, &name, &activity, &status, &modified, &user); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, model.TaskRow{
			ID:       tid.String,
			Name:     name.String,
			Activity: activity.String,
			Status:   status.String,
			Modified: parseTime(modified),
			UserID:   user.String,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// EnsureSchema creates the audit tables if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := s.conn.exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.conn.ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.conn.close()
}

// instrument opens a span around one query and returns a completion func
// that records metrics and ends the span.
func (s *Store) instrument(ctx context.Context, op string) (context.Context, trace.Span, func(rows int, err error)) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "auditstore."+op)
	return ctx, span, func(rows int, err error) {
		s.metrics.RecordAuditQuery(op, rows, time.Since(start), err)
		span.SetAttributes(observability.AttrRowCount.Int(rows))
		observability.EndSpanWithError(span, err)
	}
}

// instanceScan holds the nullable scan targets of instanceColumns.
type instanceScan struct {
	id, name, started, startedBy sql.NullString
	document, modified, template sql.NullString
	status                       sql.NullInt64
}

func (s *instanceScan) dest() []any {
	return []any{&s.id, &s.name, &s.started, &s.startedBy, &s.document, &s.modified, &s.status, &s.template}
}

func (s *instanceScan) row() model.InstanceRow {
	return model.InstanceRow{
		ID:           s.id.String,
		TemplateName: s.name.String,
		Started:      parseTime(s.started),
		StartedBy:    s.startedBy.String,
		DocumentID:   s.document.String,
		Modified:     parseTime(s.modified),
		State:        model.InstanceState(s.status.Int64),
		TemplateID:   s.template.String,
	}
}

// eventScan holds the nullable event columns of a row-mode list row.
type eventScan struct {
	id, modified, action sql.NullString
	typ                  sql.NullInt64
}

func (e *eventScan) dest() []any {
	return []any{&e.id, &e.modified, &e.typ, &e.action}
}

func (e *eventScan) event() *model.TrackingEvent {
	if !e.id.Valid {
		return nil
	}
	return &model.TrackingEvent{
		Time:   e.modified.String,
		Type:   model.EventType(e.typ.Int64),
		Action: e.action.String,
	}
}

// parseTime reads a timestamp rendered by dialect.timeText.
func parseTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(model.TimeLayout, v.String)
	if err != nil {
		return nil
	}
	return &t
}
