// Package migrate drives the batch transfer of validated candidate records
// to the destination: chunking, bounded-concurrency submission, retry with
// backoff, idempotent resume via a persisted cursor, and overwrite behavior.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"redmig/internal/audit"
	"redmig/internal/domain"
	"redmig/internal/mapping"
	"redmig/internal/migrate/cursor"
	"redmig/internal/migrate/existence"
	"redmig/internal/migrate/metrics"
	"redmig/internal/redcap"
	derrors "redmig/pkg/domain-errors"
)

// Candidate pairs a mapped record with its pre-transfer validation issues.
// Records whose issues include an error never reach the destination; they
// become skipped outcomes inside their batch so cursor accounting stays
// uniform.
type Candidate struct {
	Record *domain.CandidateRecord
	Issues []domain.Issue
}

// CandidateSource yields candidates in source row order. Next returns io.EOF
// after the last candidate. Sources are forward-only; restarting means
// reopening the source and relying on the cursor to skip.
type CandidateSource interface {
	Next(ctx context.Context) (*Candidate, error)
	Total() int
}

// PostValidator compares a confirmed submission against the destination's
// acknowledgement.
type PostValidator interface {
	Post(rec *domain.CandidateRecord, acknowledged map[string]string) []domain.Issue
}

// Observer receives progress callbacks as records and batches reach terminal
// states. Implementations must be safe for concurrent use.
type Observer interface {
	RecordDone(out domain.Outcome)
	BatchDone(batchIndex, cursorIndex int)
}

// Config are the orchestration knobs for one run.
type Config struct {
	BatchSize   int
	Workers     int
	MaxAttempts int
	Overwrite   mapping.OverwriteBehavior
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.Overwrite == "" {
		c.Overwrite = mapping.OverwriteAlways
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	return c
}

// Orchestrator owns MigrationOutcome and BatchCursor state for the duration
// of a run. Only the batch-commit step writes the cursor.
type Orchestrator struct {
	client  redcap.Client
	cursors cursor.Store
	post    PostValidator
	limiter *Limiter
	cache   existence.Cache
	pub     *audit.Publisher
	met     *metrics.Metrics
	obs     Observer
	logger  *slog.Logger
	cfg     Config
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithPostValidator enables post-transfer reconciliation checks.
func WithPostValidator(p PostValidator) Option {
	return func(o *Orchestrator) { o.post = p }
}

// WithLimiter gates submission starts with a shared rate limiter.
func WithLimiter(l *Limiter) Option {
	return func(o *Orchestrator) { o.limiter = l }
}

// WithExistenceCache memoizes destination existence checks for skip/merge.
func WithExistenceCache(c existence.Cache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithAuditPublisher emits audit events for the run lifecycle, record
// outcomes, and batch commits.
func WithAuditPublisher(p *audit.Publisher) Option {
	return func(o *Orchestrator) { o.pub = p }
}

// WithMetrics records Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.met = m }
}

// WithObserver wires a progress observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.obs = obs }
}

// New constructs an orchestrator.
func New(client redcap.Client, cursors cursor.Store, cfg Config, opts ...Option) (*Orchestrator, error) {
	if client == nil {
		return nil, fmt.Errorf("destination client is required")
	}
	if cursors == nil {
		return nil, fmt.Errorf("cursor store is required")
	}
	o := &Orchestrator{
		client:  client,
		cursors: cursors,
		cfg:     cfg.withDefaults(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Result is everything a run produced.
type Result struct {
	RunID    uuid.UUID
	Outcomes []domain.Outcome
	Cursor   domain.BatchCursor
	// Cancelled is true when the run stopped at a batch boundary because the
	// context was done; the persisted cursor reflects the last full batch.
	Cancelled bool
}

// Run transfers candidates in batches. A non-zero previous cursor resumes:
// rows with index <= LastCommittedIndex are consumed without re-submission,
// and their id checksum must match the cursor's or the run aborts before
// touching the destination.
//
// Per-record failures never halt the batch; the cursor advances only after
// every record of a batch is terminal, and is persisted before the next
// batch starts.
func (o *Orchestrator) Run(ctx context.Context, runID uuid.UUID, src CandidateSource, prev *domain.BatchCursor) (*Result, error) {
	res := &Result{RunID: runID}

	if prev != nil && prev.TotalRecords != 0 && prev.TotalRecords != src.Total() {
		return nil, derrors.Newf(derrors.CodeInvalidInput,
			"cursor was written for %d records but source has %d; refusing to resume", prev.TotalRecords, src.Total())
	}

	var sum domain.IDChecksum
	nextIndex := 0

	// Replay the committed prefix: consume without submitting, rebuilding the
	// id checksum to prove this is the same source in the same order.
	if prev != nil && prev.LastCommittedIndex >= 0 && prev.Checksum != "" {
		for nextIndex <= prev.LastCommittedIndex {
			cand, err := src.Next(ctx)
			if errors.Is(err, io.EOF) {
				return nil, derrors.New(derrors.CodeInvalidInput, "source ended before the cursor's committed index; refusing to resume")
			}
			if err != nil {
				return nil, fmt.Errorf("read source during resume replay: %w", err)
			}
			sum.Add(candidateID(cand))
			nextIndex++
		}
		if sum.Sum() != prev.Checksum {
			return nil, derrors.New(derrors.CodeInvalidInput,
				"source does not match the cursor checksum; refusing to resume against a different or reordered file")
		}
		// The replayed cursor stands until a new batch commits, so a resume
		// with nothing left to do still reports the committed position.
		res.Cursor = *prev
		o.logger.Info("resuming run", "run_id", runID, "skipped_rows", nextIndex)
	}

	o.emit(ctx, audit.Event{RunID: runID, Kind: audit.KindRunStarted})

	batchIndex := 0
	for {
		// Cancellation boundary: between batches only.
		if err := ctx.Err(); err != nil {
			res.Cancelled = true
			o.emit(ctx, audit.Event{RunID: runID, Kind: audit.KindRunFinished})
			return res, nil
		}

		batch, err := o.readBatch(ctx, src)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		outcomes := o.processBatch(ctx, runID, batch)
		res.Outcomes = append(res.Outcomes, outcomes...)

		for _, cand := range batch {
			sum.Add(candidateID(cand))
		}
		nextIndex += len(batch)

		cur := domain.BatchCursor{
			LastCommittedIndex: nextIndex - 1,
			TotalRecords:       src.Total(),
			Checksum:           sum.Sum(),
		}
		if err := o.cursors.Save(ctx, cur); err != nil {
			return nil, fmt.Errorf("persist cursor after batch %d: %w", batchIndex, err)
		}
		res.Cursor = cur
		if o.met != nil {
			o.met.BatchesCommitted.Inc()
		}
		if o.obs != nil {
			o.obs.BatchDone(batchIndex, cur.LastCommittedIndex)
		}
		o.emit(ctx, audit.Event{RunID: runID, Kind: audit.KindBatchCommitted, BatchIndex: batchIndex})
		o.logger.Info("batch committed", "run_id", runID, "batch", batchIndex, "records", len(batch), "cursor_index", cur.LastCommittedIndex)
		batchIndex++
	}

	o.emit(ctx, audit.Event{RunID: runID, Kind: audit.KindRunFinished})
	return res, nil
}

func (o *Orchestrator) readBatch(ctx context.Context, src CandidateSource) ([]*Candidate, error) {
	batch := make([]*Candidate, 0, o.cfg.BatchSize)
	for len(batch) < o.cfg.BatchSize {
		cand, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read source: %w", err)
		}
		batch = append(batch, cand)
	}
	return batch, nil
}

// processBatch drives every candidate of one batch to a terminal state.
// Submission order follows source order; completions may interleave.
func (o *Orchestrator) processBatch(ctx context.Context, runID uuid.UUID, batch []*Candidate) []domain.Outcome {
	outcomes := make([]domain.Outcome, len(batch))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(o.cfg.Workers)

	for i, cand := range batch {
		g.Go(func() error {
			out := o.processCandidate(gctx, cand)
			mu.Lock()
			outcomes[i] = out
			mu.Unlock()
			o.recordOutcome(gctx, runID, out)
			return nil
		})
	}
	// Workers never return errors; every record reaches a terminal state.
	_ = g.Wait()
	return outcomes
}

func (o *Orchestrator) processCandidate(ctx context.Context, cand *Candidate) domain.Outcome {
	// Validation rejects: terminal skipped, never submitted.
	if domain.HasErrors(cand.Issues) {
		first := firstError(cand.Issues)
		return domain.Outcome{
			Key:       candidateKey(cand),
			Status:    domain.StatusSkipped,
			ErrorCode: first.Code,
			LastError: first.Message,
		}
	}

	rec := cand.Record
	key := rec.Key()
	values := rec.Values()

	switch o.cfg.Overwrite {
	case mapping.OverwriteSkip:
		exists, err := o.exists(ctx, key)
		if err != nil {
			return o.failed(key, 0, err)
		}
		if exists {
			return domain.Outcome{Key: key, Status: domain.StatusSkipped, LastError: "destination already has data for this record"}
		}
	case mapping.OverwriteMerge:
		remote, err := o.client.ExportRecord(ctx, key)
		if err != nil {
			return o.failed(key, 0, err)
		}
		// A field present at the destination, even blank, is not merged over.
		merged := make(map[string]string, len(values))
		for k, v := range values {
			if _, present := remote[k]; !present {
				merged[k] = v
			}
		}
		if len(merged) == 0 {
			return domain.Outcome{Key: key, Status: domain.StatusSkipped, LastError: "all fields already populated at destination"}
		}
		values = merged
	}

	return o.submitWithRetry(ctx, rec, values)
}

// submitWithRetry walks pending -> submitting -> confirmed|failed, looping
// failed transient attempts back into submitting up to MaxAttempts.
func (o *Orchestrator) submitWithRetry(ctx context.Context, rec *domain.CandidateRecord, values map[string]string) domain.Outcome {
	key := rec.Key()
	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		if err := o.waitLimiter(ctx); err != nil {
			return o.failed(key, attempt-1, err)
		}

		start := time.Now()
		conf, err := o.client.SubmitRecord(ctx, key, values)
		if o.met != nil {
			o.met.SubmitDuration.Observe(time.Since(start).Seconds())
		}
		if err == nil {
			if o.cache != nil {
				_ = o.cache.Store(ctx, key, true)
			}
			if o.post != nil && conf.Fields != nil {
				if issues := o.post.Post(rec, conf.Fields); domain.HasErrors(issues) {
					first := firstError(issues)
					return domain.Outcome{
						Key:       key,
						Status:    domain.StatusFailed,
						Attempts:  attempt,
						ErrorCode: first.Code,
						LastError: first.Message,
					}
				}
			}
			return domain.Outcome{Key: key, Status: domain.StatusConfirmed, Attempts: attempt}
		}

		lastErr = err
		if !isTransient(err) || attempt == o.cfg.MaxAttempts {
			return o.failed(key, attempt, err)
		}
		if o.met != nil {
			o.met.RetriesTotal.Inc()
		}
		delay := backoffDelay(attempt, o.cfg.BaseBackoff, o.cfg.MaxBackoff)
		o.logger.Warn("transient submit failure, retrying",
			"record_id", key.RecordID, "attempt", attempt, "delay", delay, "error", err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return o.failed(key, attempt, lastErr)
		case <-timer.C:
		}
	}
	return o.failed(key, o.cfg.MaxAttempts, lastErr)
}

func (o *Orchestrator) exists(ctx context.Context, key domain.Key) (bool, error) {
	if o.cache != nil {
		if exists, known, err := o.cache.Lookup(ctx, key); err == nil && known {
			return exists, nil
		}
	}
	exists, err := o.client.RecordExists(ctx, key)
	if err != nil {
		return false, err
	}
	if o.cache != nil {
		_ = o.cache.Store(ctx, key, exists)
	}
	return exists, nil
}

func (o *Orchestrator) waitLimiter(ctx context.Context) error {
	if o.limiter == nil {
		return nil
	}
	return o.limiter.Wait(ctx)
}

func (o *Orchestrator) failed(key domain.Key, attempts int, err error) domain.Outcome {
	out := domain.Outcome{
		Key:      key,
		Status:   domain.StatusFailed,
		Attempts: attempts,
	}
	if err != nil {
		out.LastError = err.Error()
	}
	return out
}

func (o *Orchestrator) recordOutcome(ctx context.Context, runID uuid.UUID, out domain.Outcome) {
	if o.obs != nil {
		o.obs.RecordDone(out)
	}
	if o.met != nil {
		switch out.Status {
		case domain.StatusConfirmed:
			o.met.RecordsConfirmed.Inc()
		case domain.StatusFailed:
			o.met.RecordsFailed.Inc()
		case domain.StatusSkipped:
			o.met.RecordsSkipped.Inc()
		}
	}
	o.emit(ctx, audit.Event{
		RunID:    runID,
		Kind:     audit.KindRecordOutcome,
		RecordID: out.Key.RecordID,
		Event:    out.Key.Event,
		Instance: out.Key.Instance,
		Status:   out.Status,
		Code:     out.ErrorCode,
		Message:  out.LastError,
	})
}

func (o *Orchestrator) emit(ctx context.Context, e audit.Event) {
	if o.pub != nil {
		o.pub.Emit(ctx, e)
	}
}

// isTransient classifies an error as retryable.
func isTransient(err error) bool {
	var remote *redcap.RemoteError
	if errors.As(err, &remote) {
		return remote.Transient
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func firstError(issues []domain.Issue) domain.Issue {
	for _, is := range issues {
		if is.Severity == domain.SeverityError {
			return is
		}
	}
	return domain.Issue{}
}

// candidateKey tolerates candidates whose record could not be constructed
// (no usable record id): the outcome is keyed by the issue's row label.
func candidateKey(cand *Candidate) domain.Key {
	if cand.Record != nil {
		return cand.Record.Key()
	}
	if len(cand.Issues) > 0 {
		return domain.Key{RecordID: cand.Issues[0].RecordID, Instance: 1}
	}
	return domain.Key{Instance: 1}
}

func candidateID(cand *Candidate) string {
	return candidateKey(cand).RecordID
}
