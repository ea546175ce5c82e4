package auditstore

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/pitabwire/bpmonitor/model"
)

// ErrInvalidTable is returned when a table name is not a plain identifier.
var ErrInvalidTable = errors.New("invalid table name")

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// dialect captures the SQL differences between the supported drivers.
type dialect struct {
	name        string
	placeholder func(n int) string
	quoteIdent  func(name string) string
	timeText    func(expr string) string
	lower       func(expr string) string
	trailAgg    func(piece, order string) string
}

var postgresDialect = dialect{
	name:        "postgres",
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	quoteIdent:  func(name string) string { return pgx.Identifier{name}.Sanitize() },
	timeText: func(expr string) string {
		return "to_char(" + expr + ", 'YYYY-MM-DD HH24:MI:SS')"
	},
	lower: func(expr string) string { return "LOWER(" + expr + ")" },
	trailAgg: func(piece, order string) string {
		return "string_agg(" + piece + ", '" + model.EventSeparator + "' ORDER BY " + order + ")"
	},
}

var sqliteDialect = dialect{
	name:        "sqlite",
	placeholder: func(int) string { return "?" },
	quoteIdent: func(name string) string {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	},
	timeText: func(expr string) string {
		return "strftime('%Y-%m-%d %H:%M:%S', " + expr + ")"
	},
	// SQLite LOWER folds ASCII only.
	lower: func(expr string) string { return sqliteLowerFunc + "(" + expr + ")" },
	trailAgg: func(piece, order string) string {
		return "group_concat(" + piece + ", '" + model.EventSeparator + "' ORDER BY " + order + ")"
	},
}

// queryBuilder accumulates SQL text and its bound arguments.
type queryBuilder struct {
	d    dialect
	sb   strings.Builder
	args []any
}

func newQueryBuilder(d dialect) *queryBuilder {
	return &queryBuilder{d: d}
}

// arg binds v and returns its placeholder.
func (b *queryBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return b.d.placeholder(len(b.args))
}

func (b *queryBuilder) write(parts ...string) {
	for _, p := range parts {
		b.sb.WriteString(p)
	}
}

func (b *queryBuilder) build() (string, []any) {
	return b.sb.String(), b.args
}

// instanceColumns is the select list shared by every instance query. The
// source alias must expose the b_bp_workflow_instance columns plus
// template_name.
func instanceColumns(d dialect, alias string) string {
	col := func(c string) string { return alias + "." + c }
	return strings.Join([]string{
		"CAST(" + col("id") + " AS TEXT)",
		col("template_name"),
		d.timeText(col("started")),
		"CAST(" + col("started_by") + " AS TEXT)",
		col("document_id"),
		d.timeText(col("modified")),
		col("status"),
		"CAST(" + col("workflow_template_id") + " AS TEXT)",
	}, ", ")
}

// writePage renders the filtered, ordered and windowed instance page as a
// CTE named page.
func writePage(b *queryBuilder, f model.Filter) {
	b.write(`WITH page AS (
	SELECT wi.id, wi.workflow_template_id, wi.document_id, wi.started,
	       wi.started_by, wi.modified, wi.status, wt.name AS template_name
	FROM b_bp_workflow_instance wi
	LEFT JOIN b_bp_workflow_template wt ON wt.id = wi.workflow_template_id
	WHERE 1=1`)

	if f.Search != "" {
		b.write("\n\tAND (", b.d.lower("wt.name"), " LIKE ", b.d.lower(b.arg(f.Search)), ` ESCAPE '\'`,
			" OR ", b.d.lower("CAST(wi.id AS TEXT)"), " LIKE ", b.d.lower(b.arg(f.Search)), ` ESCAPE '\')`)
	}

	if p := f.State; p != nil {
		b.write("\n\tAND (wi.status IN (", stateList(b, p.States), ")")
		if p.WithErrorEvents && len(p.ErrorEventStates) > 0 {
			b.write(" OR (wi.status IN (", stateList(b, p.ErrorEventStates), ")",
				" AND EXISTS (SELECT 1 FROM b_bp_tracking e WHERE e.workflow_id = wi.id AND e.type = ",
				b.arg(int(model.EventTypeError)), "))")
		}
		b.write(")")
	}

	b.write("\n\tORDER BY wi.started DESC NULLS LAST, wi.id DESC",
		"\n\tLIMIT ", b.arg(f.Page.Limit), " OFFSET ", b.arg(f.Page.Offset),
		"\n)\n")
}

func stateList(b *queryBuilder, states []model.InstanceState) string {
	if len(states) == 0 {
		return "NULL"
	}
	ph := make([]string, len(states))
	for i, s := range states {
		ph[i] = b.arg(int(s))
	}
	return strings.Join(ph, ", ")
}

// renderListRows renders the row-mode list query: one row per (instance,
// event), instances in page order and events newest first. Instances
// without events produce one row with NULL event columns.
func renderListRows(d dialect, f model.Filter) (string, []any) {
	b := newQueryBuilder(d)
	writePage(b, f)
	b.write("SELECT ", instanceColumns(d, "p"), ",\n",
		"       CAST(t.id AS TEXT), ", d.timeText("t.modified"), ", t.type, t.action_name\n",
		"FROM page p\n",
		"LEFT JOIN b_bp_tracking t ON t.workflow_id = p.id\n",
		"ORDER BY p.started DESC NULLS LAST, p.id DESC, t.modified DESC NULLS LAST, t.id DESC")
	return b.build()
}

// renderListPacked renders the packed-mode list query: one row per instance
// with its trail encoded as time|type|action pieces joined by ;;; newest
// first. A NULL event time packs as an empty field.
func renderListPacked(d dialect, f model.Filter) (string, []any) {
	b := newQueryBuilder(d)
	writePage(b, f)
	piece := "COALESCE(" + d.timeText("t.modified") + ", '')" +
		" || '" + model.FieldSeparator + "' || CAST(t.type AS TEXT) || '" + model.FieldSeparator +
		"' || COALESCE(t.action_name, '')"
	b.write("SELECT ", instanceColumns(d, "p"), ",\n",
		"       (SELECT ", d.trailAgg(piece, "t.modified DESC NULLS LAST, t.id DESC"),
		" FROM b_bp_tracking t WHERE t.workflow_id = p.id)\n",
		"FROM page p\n",
		"ORDER BY p.started DESC NULLS LAST, p.id DESC")
	return b.build()
}

// renderCount renders a COUNT(*) over a validated table name.
func renderCount(d dialect, table string) (string, error) {
	if !tableNamePattern.MatchString(table) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	return "SELECT COUNT(*) FROM " + d.quoteIdent(table), nil
}

func renderGetInstance(d dialect, id string) (string, []any) {
	b := newQueryBuilder(d)
	b.write("SELECT ", instanceColumns(d, "i"), "\n",
		`FROM (
	SELECT wi.id, wi.workflow_template_id, wi.document_id, wi.started,
	       wi.started_by, wi.modified, wi.status, wt.name AS template_name
	FROM b_bp_workflow_instance wi
	LEFT JOIN b_bp_workflow_template wt ON wt.id = wi.workflow_template_id
	WHERE wi.id = `, b.arg(id), "\n) i")
	return b.build()
}

func renderListEvents(d dialect, id string) (string, []any) {
	b := newQueryBuilder(d)
	b.write("SELECT CAST(t.id AS TEXT), t.type, t.action_title, t.action_name, ",
		d.timeText("t.modified"), ", CAST(t.user_id AS TEXT),",
		" CAST(t.execution_status AS TEXT), CAST(t.execution_result AS TEXT), t.note\n",
		"FROM b_bp_tracking t\n",
		"WHERE t.workflow_id = ", b.arg(id), "\n",
		"ORDER BY t.modified DESC NULLS LAST, t.id DESC")
	return b.build()
}

func renderListTasks(d dialect, id string) (string, []any) {
	b := newQueryBuilder(d)
	b.write("SELECT CAST(tk.id AS TEXT), tk.name, tk.activity, CAST(tk.status AS TEXT), ",
		d.timeText("tk.modified"), ", CAST(tu.user_id AS TEXT)\n",
		"FROM b_bp_task tk\n",
		"LEFT JOIN b_bp_task_user tu ON tu.task_id = tk.id\n",
		"WHERE tk.workflow_id = ", b.arg(id), "\n",
		"ORDER BY tk.modified DESC NULLS LAST, tk.id DESC, tu.user_id")
	return b.build()
}
