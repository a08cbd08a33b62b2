package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"priceindex/internal/exporter"
	"priceindex/internal/infrastructure"
	"priceindex/internal/multilateral"
	"priceindex/internal/panel"
)

// DefaultMaxConcurrency bounds the per-group fan-out of ComputeGrouped
const DefaultMaxConcurrency = 4

// ComputeRequest describes one index computation
type ComputeRequest struct {
	Method string
	Panel  *panel.Panel
	// Source names where the observations came from (file name, "api", ...)
	Source string
}

// GroupedRun is the result of ComputeGrouped, one run per group in group order
type GroupedRun struct {
	ID          string      `json:"id"`
	GroupColumn string      `json:"group_column"`
	Runs        []*IndexRun `json:"runs"`
}

// IndexService computes multilateral indexes and keeps the results
type IndexService struct {
	calculator      *multilateral.Calculator
	store           RunStore
	tracer          trace.Tracer
	metrics         *infrastructure.IndexMetrics
	exportOptions   exporter.Options
	maxConcurrency  int
	maxObservations int
	logger          *slog.Logger
}

// IndexServiceOption configures an IndexService
type IndexServiceOption func(*IndexService)

// WithStore sets the run store
func WithStore(store RunStore) IndexServiceOption {
	return func(s *IndexService) {
		s.store = store
	}
}

// WithTracer sets the tracer used for computation spans
func WithTracer(tracer trace.Tracer) IndexServiceOption {
	return func(s *IndexService) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithMetrics sets the metric instruments
func WithMetrics(metrics *infrastructure.IndexMetrics) IndexServiceOption {
	return func(s *IndexService) {
		s.metrics = metrics
	}
}

// WithMaxConcurrency bounds how many groups are computed at once
func WithMaxConcurrency(n int) IndexServiceOption {
	return func(s *IndexService) {
		if n > 0 {
			s.maxConcurrency = n
		}
	}
}

// WithMaxObservations rejects panels with more rows; 0 disables the check
func WithMaxObservations(n int) IndexServiceOption {
	return func(s *IndexService) {
		s.maxObservations = n
	}
}

// WithExportOptions sets the options used by Export
func WithExportOptions(opts exporter.Options) IndexServiceOption {
	return func(s *IndexService) {
		s.exportOptions = opts
	}
}

// NewIndexService creates an index service. Without WithStore, runs are kept
// in an unbounded MemoryRunStore.
func NewIndexService(logger *slog.Logger, opts ...IndexServiceOption) *IndexService {
	if logger == nil {
		logger = slog.Default()
	}

	s := &IndexService{
		tracer:         noop.NewTracerProvider().Tracer(infrastructure.InstrumentationName),
		exportOptions:  exporter.DefaultOptions(),
		maxConcurrency: DefaultMaxConcurrency,
		logger:         logger.With(slog.String("service", "index")),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = NewMemoryRunStore(0)
	}
	s.calculator = multilateral.NewCalculator(logger)
	return s
}

// Compute computes one index and stores the run
func (s *IndexService) Compute(ctx context.Context, req ComputeRequest) (*IndexRun, error) {
	method, err := s.checkRequest(req)
	if err != nil {
		return nil, err
	}

	run, err := s.compute(ctx, req, method, "")
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(run); err != nil {
		return nil, fmt.Errorf("save run: %w", err)
	}
	return run, nil
}

// ComputeGrouped splits the panel on groupColumn and computes one index per
// group. Runs are stored only when every group succeeds.
func (s *IndexService) ComputeGrouped(ctx context.Context, req ComputeRequest, groupColumn string) (*GroupedRun, error) {
	method, err := s.checkRequest(req)
	if err != nil {
		return nil, err
	}
	if groupColumn == "" {
		return nil, ErrGroupColumnRequired
	}

	keys, groups, err := req.Panel.GroupBy(groupColumn)
	if err != nil {
		return nil, err
	}
	if limit := s.storeCapacity(); limit > 0 && len(keys) > limit {
		return nil, fmt.Errorf("%w: %d groups, capacity %d", ErrGroupTooLarge, len(keys), limit)
	}

	result := &GroupedRun{
		ID:          uuid.New().String(),
		GroupColumn: groupColumn,
		Runs:        make([]*IndexRun, len(keys)),
	}

	ctx, span := s.tracer.Start(ctx, "IndexService.ComputeGrouped",
		trace.WithAttributes(
			attribute.String("index.method", method.String()),
			attribute.String("index.group_column", groupColumn),
			attribute.Int("index.groups", len(keys)),
		))
	defer span.End()

	s.logger.InfoContext(ctx, "starting grouped index computation",
		slog.String("group_id", result.ID),
		slog.String("method", method.String()),
		slog.String("group_column", groupColumn),
		slog.Int("groups", len(keys)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)

	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			sub := ComputeRequest{Method: req.Method, Panel: groups[key], Source: req.Source}
			run, err := s.compute(gctx, sub, method, result.ID)
			if err != nil {
				return fmt.Errorf("group %s: %w", key, err)
			}
			run.GroupColumn = groupColumn
			run.Group = key
			run.GroupSize = len(keys)
			result.Runs[i] = run
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := s.store.SaveGroup(result.Runs); err != nil {
		return nil, fmt.Errorf("save runs: %w", err)
	}
	return result, nil
}

// checkRequest validates the method before anything touches the panel
func (s *IndexService) checkRequest(req ComputeRequest) (multilateral.Method, error) {
	method, err := multilateral.ParseMethod(req.Method)
	if err != nil {
		return "", err
	}
	if req.Panel == nil {
		return "", ErrPanelRequired
	}
	if s.maxObservations > 0 && req.Panel.Len() > s.maxObservations {
		return "", fmt.Errorf("%w: %d rows, limit %d", ErrTooManyObservations, req.Panel.Len(), s.maxObservations)
	}
	return method, nil
}

func (s *IndexService) compute(ctx context.Context, req ComputeRequest, method multilateral.Method, groupID string) (*IndexRun, error) {
	run := &IndexRun{
		ID:        uuid.New().String(),
		GroupID:   groupID,
		Method:    method,
		Source:    req.Source,
		CreatedAt: time.Now().UTC(),
	}
	ctx = infrastructure.WithRunID(ctx, run.ID)

	ctx, span := s.tracer.Start(ctx, "IndexService.Compute",
		trace.WithAttributes(
			attribute.String("index.run_id", run.ID),
			attribute.String("index.method", method.String()),
			attribute.Int("index.observations", req.Panel.Len()),
		))
	defer span.End()

	infrastructure.RecordActiveComputation(ctx, s.metrics, 1)
	defer infrastructure.RecordActiveComputation(ctx, s.metrics, -1)

	start := time.Now()
	table, err := s.calculator.Calculate(ctx, req.Panel, method)
	duration := time.Since(start)

	periods := 0
	if table != nil {
		periods = table.Len()
	}
	infrastructure.RecordComputation(ctx, s.metrics, method.String(), req.Panel.Len(), periods, duration, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.WarnContext(ctx, "index computation failed",
			slog.String("method", method.String()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	run.Table = table
	run.DurationMS = duration.Milliseconds()
	span.SetAttributes(attribute.Int("index.periods", periods))
	return run, nil
}

// Get returns a stored run
func (s *IndexService) Get(id string) (*IndexRun, error) {
	return s.store.Get(id)
}

// GetGroup returns the runs of a grouped computation in the order
// ComputeGrouped produced them. A group missing any of its runs is not found.
func (s *IndexService) GetGroup(groupID string) (*GroupedRun, error) {
	runs, err := s.store.List(RunFilter{GroupID: groupID})
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, groupID)
	}
	if size := runs[0].GroupSize; size > 0 && len(runs) != size {
		return nil, fmt.Errorf("%w: group %s has %d of %d runs", ErrRunNotFound, groupID, len(runs), size)
	}

	labels := make([]string, len(runs))
	for i, run := range runs {
		labels[i] = run.Group
	}
	rank := make(map[string]int, len(runs))
	for i, label := range panel.DistinctSorted(labels) {
		rank[label] = i
	}
	sort.Slice(runs, func(i, j int) bool { return rank[runs[i].Group] < rank[runs[j].Group] })

	return &GroupedRun{ID: groupID, GroupColumn: runs[0].GroupColumn, Runs: runs}, nil
}

// List returns the most recent runs, newest first; limit <= 0 returns all
func (s *IndexService) List(limit int) ([]*IndexRun, error) {
	return s.store.List(RunFilter{Limit: limit})
}

// Export writes a run, or every run of a grouped computation, in the given format
func (s *IndexService) Export(ctx context.Context, w io.Writer, id string, format exporter.Format) error {
	var runs []*IndexRun
	groupColumn := ""

	run, err := s.store.Get(id)
	switch {
	case err == nil:
		runs = []*IndexRun{run}
	default:
		group, gerr := s.GetGroup(id)
		if gerr != nil {
			return err
		}
		runs = group.Runs
		groupColumn = group.GroupColumn
	}

	tables := make([]exporter.Labelled, len(runs))
	for i, r := range runs {
		tables[i] = exporter.Labelled{Group: r.Group, Table: r.Table}
	}

	opts := s.exportOptions
	if groupColumn != "" {
		opts.GroupColumn = groupColumn
	}

	s.logger.DebugContext(ctx, "exporting index",
		slog.String("id", id),
		slog.String("format", string(format)),
		slog.Int("tables", len(tables)),
	)
	return exporter.New(opts, s.logger).Write(w, format, tables...)
}

func (s *IndexService) storeCapacity() int {
	if capped, ok := s.store.(interface{ Capacity() int }); ok {
		return capped.Capacity()
	}
	return 0
}

// Len returns the number of stored runs when the store can report it
func (s *IndexService) Len() int {
	if counter, ok := s.store.(interface{ Len() int }); ok {
		return counter.Len()
	}
	return -1
}
