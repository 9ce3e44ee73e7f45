// Package run coordinates a full migration: load the mapping document, fetch
// the destination dictionary, map and validate rows, hand batches to the
// orchestrator, and fold the result into a reconciliation summary.
package run

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"redmig/internal/catalog"
	catstore "redmig/internal/catalog/store"
	"redmig/internal/domain"
	"redmig/internal/mapping"
	"redmig/internal/migrate"
	"redmig/internal/phi"
	"redmig/internal/redcap"
	"redmig/internal/report"
	"redmig/internal/source"
	"redmig/internal/validate"
	derrors "redmig/pkg/domain-errors"
	"redmig/pkg/platform/sentinel"
)

// Service drives one migration or validation run end to end.
type Service struct {
	client   redcap.Client
	orch     *migrate.Orchestrator
	snaps    catstore.SnapshotStore
	asOfYear int
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithAsOfYear fixes the reference year for calculated fields. Zero means
// the current year.
func WithAsOfYear(year int) Option {
	return func(s *Service) { s.asOfYear = year }
}

// WithSnapshots keeps a copy of each fetched data dictionary and falls back
// to the last stored copy when the metadata export is unreachable.
func WithSnapshots(snaps catstore.SnapshotStore) Option {
	return func(s *Service) { s.snaps = snaps }
}

// New builds a run service. orch may be nil for validate-only use.
func New(client redcap.Client, orch *migrate.Orchestrator, opts ...Option) *Service {
	s := &Service{
		client:   client,
		orch:     orch,
		asOfYear: time.Now().Year(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validation is the outcome of a dry run: every row mapped and pre-validated,
// nothing submitted.
type Validation struct {
	TotalRows   int
	Records     []*domain.CandidateRecord
	Issues      []domain.Issue
	PHICoverage phi.CoverageReport
}

// Clean reports whether no issue reached error severity.
func (v *Validation) Clean() bool {
	return !domain.HasErrors(v.Issues)
}

// Validate maps and pre-validates every source row without touching the
// destination beyond the dictionary export.
func (s *Service) Validate(ctx context.Context, doc *mapping.Document, src source.RowSource) (*Validation, error) {
	cat, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	s.warnUndeclaredPHI(doc, src.Headers())

	interp := mapping.NewInterpreter(doc, cat, s.asOfYear, mapping.WithLogger(s.logger))
	validator := validate.New(doc.Rules, cat, validate.WithLogger(s.logger))

	out := &Validation{TotalRows: src.Total()}
	for index := 0; ; index++ {
		row, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rec, issues := interp.Resolve(row, index)
		out.Issues = append(out.Issues, issues...)
		if rec == nil {
			continue
		}
		out.Records = append(out.Records, rec)
		out.Issues = append(out.Issues, validator.Pre(rec)...)
	}
	out.Issues = append(out.Issues, validate.Consistency(out.Records)...)
	out.PHICoverage = phi.Coverage(out.Records)
	return out, nil
}

// Migrate maps, validates, and transfers every source row, resuming from
// prev when it is non-nil. Rows that fail pre-validation become skipped
// outcomes; they never reach the destination.
func (s *Service) Migrate(ctx context.Context, doc *mapping.Document, src source.RowSource, prev *domain.BatchCursor) (*report.Summary, error) {
	if s.orch == nil {
		return nil, fmt.Errorf("%w: run service was built without an orchestrator", sentinel.ErrInvalidState)
	}
	started := time.Now()
	runID := uuid.New()

	cat, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	s.warnUndeclaredPHI(doc, src.Headers())

	interp := mapping.NewInterpreter(doc, cat, s.asOfYear, mapping.WithLogger(s.logger))
	validator := validate.New(doc.Rules, cat, validate.WithLogger(s.logger))

	cs := &candidateSource{
		rows:      src,
		interp:    interp,
		validator: validator,
	}

	s.logger.Info("migration starting", "run_id", runID, "rows", src.Total(), "batch_size", doc.Settings.BatchSize)
	res, err := s.orch.Run(ctx, runID, cs, prev)
	if err != nil {
		return nil, err
	}

	summary := report.Build(runID, started, time.Now(), src.Total(), res.Outcomes, cs.issues, res.Cursor, res.Cancelled)
	s.logger.Info("migration finished",
		"run_id", runID,
		"confirmed", summary.Confirmed,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"elapsed", summary.Elapsed.Round(time.Millisecond))
	return summary, nil
}

func (s *Service) loadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	info, err := s.client.ProjectInfo(ctx)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeUnavailable, "fetch project info")
	}
	fetcher := catalog.DictionaryFetcher(s.client)
	if s.snaps != nil {
		fetcher = &snapshottingFetcher{
			inner:     s.client,
			snaps:     s.snaps,
			projectID: info.ProjectID,
			logger:    s.logger,
		}
	}
	cat, err := catalog.Load(ctx, fetcher, info.Events, info.RepeatingForms, s.logger)
	if err != nil {
		return nil, err
	}
	return cat, nil
}

// snapshottingFetcher stores every successful dictionary export and serves
// the last stored copy when the export fails, so a resumed run can still
// validate against the dictionary its earlier batches used.
type snapshottingFetcher struct {
	inner     catalog.DictionaryFetcher
	snaps     catstore.SnapshotStore
	projectID string
	logger    *slog.Logger
}

func (f *snapshottingFetcher) Dictionary(ctx context.Context) ([]byte, error) {
	raw, err := f.inner.Dictionary(ctx)
	if err != nil {
		snap, getErr := f.snaps.Get(ctx, f.projectID)
		if getErr != nil {
			return nil, err
		}
		f.logger.Warn("dictionary export failed, using stored snapshot",
			"project_id", f.projectID, "captured_at", snap.CapturedAt, "error", err)
		return snap.Raw, nil
	}
	if putErr := f.snaps.Put(ctx, catstore.Snapshot{
		ProjectID:  f.projectID,
		Raw:        raw,
		CapturedAt: time.Now().UTC(),
	}); putErr != nil {
		f.logger.Warn("storing dictionary snapshot failed", "project_id", f.projectID, "error", putErr)
	}
	return raw, nil
}

// warnUndeclaredPHI flags source columns that look like identifiers but map
// to targets the document does not declare sensitive. Detection is advisory;
// the document's declarations are authoritative.
func (s *Service) warnUndeclaredPHI(doc *mapping.Document, headers []string) {
	suspect := make(map[string]struct{})
	for _, h := range phi.DetectFields(headers) {
		suspect[h] = struct{}{}
	}
	for _, fm := range doc.Fields {
		if _, ok := suspect[fm.SourceField]; !ok {
			continue
		}
		if !doc.IsPHI(fm.TargetField) {
			s.logger.Warn("source column looks like an identifier but its target is not declared sensitive",
				"source_field", fm.SourceField, "target_field", fm.TargetField)
		}
	}
}

// candidateSource adapts a row source into the orchestrator's feed: each row
// is mapped and pre-validated lazily as the orchestrator pulls it. Issues
// accumulate for the final summary.
type candidateSource struct {
	rows      source.RowSource
	interp    *mapping.Interpreter
	validator *validate.Validator
	index     int
	issues    []domain.Issue
}

func (c *candidateSource) Total() int { return c.rows.Total() }

func (c *candidateSource) Next(ctx context.Context) (*migrate.Candidate, error) {
	row, err := c.rows.Next(ctx)
	if err != nil {
		return nil, err
	}
	index := c.index
	c.index++

	rec, issues := c.interp.Resolve(row, index)
	if rec != nil {
		issues = append(issues, c.validator.Pre(rec)...)
	}
	c.issues = append(c.issues, issues...)
	return &migrate.Candidate{Record: rec, Issues: issues}, nil
}
