// Command redmig migrates tabular research records into a REDCap project
// under a declarative mapping document.
//
//	redmig validate -mapping mapping.json -source data.csv
//	redmig migrate  -mapping mapping.json -source data.csv [-resume] [-json]
//
// Destination and process settings come from REDMIG_* environment variables;
// per-project transfer knobs live in the mapping document.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"redmig/internal/audit"
	catstore "redmig/internal/catalog/store"
	"redmig/internal/domain"
	httpapi "redmig/internal/http"
	"redmig/internal/mapping"
	"redmig/internal/migrate"
	"redmig/internal/migrate/cursor"
	"redmig/internal/migrate/existence"
	"redmig/internal/migrate/metrics"
	"redmig/internal/platform/config"
	"redmig/internal/platform/httpserver"
	"redmig/internal/platform/logger"
	platformredis "redmig/internal/platform/redis"
	"redmig/internal/redcap"
	"redmig/internal/run"
	"redmig/internal/source"
	"redmig/pkg/platform/sentinel"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "validate":
		err = runValidate(ctx, os.Args[2:])
	case "migrate":
		err = runMigrate(ctx, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "redmig:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: redmig <validate|migrate> -mapping FILE -source FILE [flags]")
}

type commonFlags struct {
	mappingPath string
	sourcePath  string
}

func addCommon(fs *flag.FlagSet) *commonFlags {
	cf := &commonFlags{}
	fs.StringVar(&cf.mappingPath, "mapping", "", "path to the mapping document (JSON)")
	fs.StringVar(&cf.sourcePath, "source", "", "path to the source CSV file")
	return cf
}

func (cf *commonFlags) load() (*mapping.Document, *source.CSVSource, error) {
	if cf.mappingPath == "" || cf.sourcePath == "" {
		return nil, nil, errors.New("-mapping and -source are required")
	}
	raw, err := os.ReadFile(cf.mappingPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read mapping document: %w", err)
	}
	doc, err := mapping.Load(raw)
	if err != nil {
		return nil, nil, err
	}
	src, err := source.OpenCSV(cf.sourcePath)
	if err != nil {
		return nil, nil, err
	}
	return doc, src, nil
}

func runValidate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cf := addCommon(fs)
	jsonOut := fs.Bool("json", false, "emit machine-readable issues")
	if err := fs.Parse(args); err != nil {
		return err
	}

	doc, src, err := cf.load()
	if err != nil {
		return err
	}
	cfg := config.FromEnv()
	log := logger.New()
	client := newClient(cfg)

	svc := run.New(client, nil, run.WithLogger(log), run.WithAsOfYear(cfg.AsOfYear))
	res, err := svc.Validate(ctx, doc, src)
	if err != nil {
		return err
	}

	if *jsonOut {
		if err := writeIssuesJSON(os.Stdout, res); err != nil {
			return err
		}
	} else {
		for _, is := range res.Issues {
			fmt.Println(is)
		}
		fmt.Printf("%d rows, %d records mapped, %d issues, %.1f%% of records carry sensitive fields\n",
			res.TotalRows, len(res.Records), len(res.Issues), res.PHICoverage.PHIPercentage)
	}
	if !res.Clean() {
		return errors.New("validation found errors")
	}
	return nil
}

func runMigrate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	cf := addCommon(fs)
	resume := fs.Bool("resume", false, "resume from the saved cursor")
	jsonOut := fs.Bool("json", false, "emit the summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	doc, src, err := cf.load()
	if err != nil {
		return err
	}
	cfg := config.FromEnv()
	log := logger.New()
	client := newClient(cfg)

	cursors := cursor.NewFile(cfg.CursorPath)
	var prev *domain.BatchCursor
	if *resume {
		c, err := cursors.Load(ctx)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return fmt.Errorf("no cursor at %s to resume from", cfg.CursorPath)
			}
			return err
		}
		prev = &c
	}

	cache, closeCache, err := newExistenceCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCache()

	auditStore, db, closeAudit, err := newAuditStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeAudit()

	snaps, err := newSnapshotStore(ctx, db)
	if err != nil {
		return err
	}

	met := metrics.New()
	pub := audit.NewPublisher(1024, met.AuditDropped.Inc)
	worker := audit.NewWorker(auditStore, pub.Inbox())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := worker.Run(context.WithoutCancel(ctx)); err != nil {
			log.Error("audit worker stopped", "error", err)
		}
	}()

	tracker := httpapi.NewTracker(src.Total())
	stopServer := startOpsServer(cfg, tracker, log)
	defer stopServer()

	orch, err := migrate.New(client, cursors,
		migrate.Config{
			BatchSize:   doc.Settings.BatchSize,
			Workers:     cfg.Workers,
			MaxAttempts: cfg.MaxAttempts,
			Overwrite:   doc.Settings.OverwriteBehavior,
		},
		migrate.WithLogger(log),
		migrate.WithLimiter(migrate.NewLimiter(cfg.SubmitRate, cfg.RateWindow)),
		migrate.WithExistenceCache(cache),
		migrate.WithAuditPublisher(pub),
		migrate.WithMetrics(met),
		migrate.WithObserver(tracker),
	)
	if err != nil {
		return err
	}

	svc := run.New(client, orch,
		run.WithLogger(log),
		run.WithAsOfYear(cfg.AsOfYear),
		run.WithSnapshots(snaps))
	summary, err := svc.Migrate(ctx, doc, src, prev)

	pub.Close()
	<-workerDone

	if err != nil {
		return err
	}
	if *jsonOut {
		if err := summary.WriteJSON(os.Stdout); err != nil {
			return err
		}
	} else if err := summary.WriteText(os.Stdout); err != nil {
		return err
	}
	if !summary.Clean() {
		if summary.Cancelled {
			return fmt.Errorf("run cancelled at cursor index %d", summary.CursorIndex)
		}
		return fmt.Errorf("%d records failed, %d rejected by validation", summary.Failed, summary.Rejected)
	}
	return nil
}

func newClient(cfg config.Migration) *redcap.HTTPClient {
	return redcap.NewHTTP(cfg.RedcapURL, cfg.APIToken,
		redcap.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}))
}

func newExistenceCache(ctx context.Context, cfg config.Migration, log *slog.Logger) (existence.Cache, func(), error) {
	rdb, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	if rdb == nil {
		log.Info("redis not configured, using in-process existence cache")
		return existence.NewMemory(), func() {}, nil
	}
	return existence.NewRedis(rdb.Client, "redmig"), func() { _ = rdb.Close() }, nil
}

func newAuditStore(ctx context.Context, cfg config.Migration, log *slog.Logger) (audit.Store, *sql.DB, func(), error) {
	if cfg.PostgresDSN == "" {
		log.Info("postgres not configured, keeping audit trail in memory")
		return audit.NewMemory(), nil, func() {}, nil
	}
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := audit.NewPostgres(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	return store, db, func() { _ = db.Close() }, nil
}

// newSnapshotStore persists dictionary snapshots next to the audit trail when
// Postgres is available; otherwise snapshots live only for the process.
func newSnapshotStore(ctx context.Context, db *sql.DB) (catstore.SnapshotStore, error) {
	if db == nil {
		return catstore.NewMemory(), nil
	}
	store := catstore.NewPostgres(db)
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func startOpsServer(cfg config.Migration, tracker *httpapi.Tracker, log *slog.Logger) func() {
	if cfg.MetricsAddr == "" {
		return func() {}
	}
	srv := httpserver.New(cfg.MetricsAddr, httpapi.NewRouter(tracker, prometheus.DefaultGatherer))
	go func() {
		log.Info("progress listener starting", "addr", cfg.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("progress listener stopped", "error", err)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

func writeIssuesJSON(w *os.File, res *run.Validation) error {
	type issueJSON struct {
		RecordID string `json:"record_id"`
		Field    string `json:"field,omitempty"`
		Severity string `json:"severity"`
		Code     string `json:"code"`
		Message  string `json:"message"`
	}
	out := struct {
		TotalRows     int         `json:"total_rows"`
		RecordsMapped int         `json:"records_mapped"`
		PHIPercentage float64     `json:"phi_percentage"`
		Issues        []issueJSON `json:"issues"`
	}{
		TotalRows:     res.TotalRows,
		RecordsMapped: len(res.Records),
		PHIPercentage: res.PHICoverage.PHIPercentage,
	}
	for _, is := range res.Issues {
		out.Issues = append(out.Issues, issueJSON{
			RecordID: is.RecordID,
			Field:    is.Field,
			Severity: string(is.Severity),
			Code:     string(is.Code),
			Message:  is.Message,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
