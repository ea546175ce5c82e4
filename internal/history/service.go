// Package history reconstructs the consolidated status of workflow instances
// from the audit trail and assembles the history responses.
package history

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/pitabwire/bpmonitor/internal/config"
	"github.com/pitabwire/bpmonitor/internal/observability"
	"github.com/pitabwire/bpmonitor/model"
)

// AuditStore is the read side of the audit tables used by the service.
type AuditStore interface {
	RowCounter
	ListInstances(ctx context.Context, f model.Filter) ([]model.AuditRow, error)
	GetInstance(ctx context.Context, id string) (model.InstanceRow, error)
	ListEvents(ctx context.Context, id string) ([]model.HistoryEntry, error)
	ListTasks(ctx context.Context, id string) ([]model.TaskRow, error)
}

// Service serves history pages, debug table counts and instance details.
type Service struct {
	store   AuditStore
	cfg     config.HistoryConfig
	asm     Assembler
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewService creates a history service. metrics may be nil.
func NewService(store AuditStore, cfg config.HistoryConfig, metrics *observability.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store: store,
		cfg:   cfg,
		asm: Assembler{
			UntitledName: cfg.UntitledName,
			Preview:      cfg.TrackingPreview,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// List returns one page of instance summaries.
func (s *Service) List(ctx context.Context, req Request) (page model.HistoryPage, err error) {
	filter := Compile(req, s.cfg.DefaultLimit)

	ctx, span := observability.StartSpan(ctx, "history.list",
		observability.AttrStatusFilter.String(req.Status),
		observability.AttrSearch.String(strings.TrimSpace(req.Search)),
		observability.AttrLimit.Int(filter.Page.Limit),
		observability.AttrOffset.Int(filter.Page.Offset),
	)
	defer func() { observability.EndSpanWithError(span, err) }()

	logger := observability.RequestLogger(ctx, s.logger)
	logger.Debug("history filter compiled",
		zap.String("search", filter.Search),
		zap.Bool("state_filter", filter.State != nil),
		zap.Int("limit", filter.Page.Limit),
		zap.Int("offset", filter.Page.Offset),
	)

	rows, err := s.store.ListInstances(ctx, filter)
	if err != nil {
		return model.HistoryPage{}, s.storeError(ctx, "list instances", err)
	}

	trails, dropped := groupRows(rows)
	if dropped > 0 {
		logger.Debug("dropped malformed packed events", zap.Int("count", dropped))
		s.metrics.RecordMalformedEvents(dropped)
	}

	page = s.asm.Page(trails, filter.Page)

	statuses := make([]string, len(page.Logs))
	for i, l := range page.Logs {
		statuses[i] = string(l.Status)
	}
	s.metrics.RecordHistoryPage(statuses)
	span.SetAttributes(observability.AttrRowCount.Int(page.Count))

	return page, nil
}

// Debug counts the rows of every configured debug table. Failures are
// reported per table and never fail the whole report.
func (s *Service) Debug(ctx context.Context) model.TableCounts {
	ctx, span := observability.StartSpan(ctx, "history.debug")
	defer span.End()

	logger := observability.RequestLogger(ctx, s.logger)
	counts := CountTables(ctx, s.store, s.cfg.DebugTables, s.cfg.DebugParallel, func(table string, err error) {
		logger.Warn("debug table count failed", zap.String("table", table), zap.Error(err))
		s.metrics.RecordDebugCountFailure(table)
	})

	return model.TableCounts{
		Success:     true,
		Debug:       true,
		TableCounts: counts,
	}
}

// Detail returns the full view of one instance.
func (s *Service) Detail(ctx context.Context, id string) (detail model.InstanceDetail, err error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.InstanceDetail{}, model.NewBadRequestError("instance id is required")
	}

	ctx, span := observability.StartSpan(ctx, "history.detail", observability.AttrInstanceID.String(id))
	defer func() { observability.EndSpanWithError(span, err) }()

	inst, err := s.store.GetInstance(ctx, id)
	if err != nil {
		return model.InstanceDetail{}, s.storeError(ctx, "get instance", err)
	}
	events, err := s.store.ListEvents(ctx, id)
	if err != nil {
		return model.InstanceDetail{}, s.storeError(ctx, "list events", err)
	}
	tasks, err := s.store.ListTasks(ctx, id)
	if err != nil {
		return model.InstanceDetail{}, s.storeError(ctx, "list tasks", err)
	}

	return s.asm.Detail(inst, events, tasks), nil
}

// storeError converts a store failure into an error envelope. Envelopes
// produced by the store (not found) pass through unchanged.
func (s *Service) storeError(ctx context.Context, op string, err error) error {
	var env *model.ErrorEnvelope
	if errors.As(err, &env) {
		return env
	}

	logger := observability.RequestLogger(ctx, s.logger)
	if errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("audit store query timed out", zap.String("operation", op), zap.Error(err))
	} else {
		logger.Error("audit store query failed", zap.String("operation", op), zap.Error(err))
	}
	return model.NewAuditStoreError(err, s.cfg.ErrorMessage)
}
