// Package runner drives a scrape run: every selected source in turn, local
// persistence of each record, a run snapshot and one remote upsert.
package runner

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/grant-scraper/internal/fetcher"
	"github.com/sells-group/grant-scraper/internal/model"
	"github.com/sells-group/grant-scraper/internal/sink"
	"github.com/sells-group/grant-scraper/internal/source"
)

// DefaultDelay is the pause between two sources.
const DefaultDelay = 5 * time.Second

// LocalSink stores records and run snapshots on disk.
type LocalSink interface {
	WriteRecord(g model.Grant) error
	WriteSnapshot(s sink.Snapshot) error
}

// Options configures a Runner.
type Options struct {
	Sources []source.Source
	Fetcher fetcher.Fetcher
	Local   LocalSink
	Remote  sink.Upserter // nil runs local-only
	Delay   time.Duration // between sources; 0 uses DefaultDelay, negative disables

	// Sleep waits d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// Now defaults to time.Now.
	Now func() time.Time
	// Logger is handed to every source and sink that accepts one. Defaults to zap.L().
	Logger *zap.Logger
}

// loggerSetter is implemented by sources and sinks that take an injected logger.
type loggerSetter interface {
	SetLogger(log *zap.Logger)
}

// SourceResult summarizes one source within a run.
type SourceResult struct {
	Grants  int
	Written int // records whose local files were all written
	Err     error
	Elapsed time.Duration
}

// Result summarizes a run.
type Result struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Grants     []model.Grant
	PerSource  map[string]SourceResult
	Upserted   int64
}

// Failed returns the sorted keys of sources that returned an error.
func (r *Result) Failed() []string {
	var keys []string
	for k, sr := range r.PerSource {
		if sr.Err != nil {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// Runner executes scrape runs.
type Runner struct {
	opts Options
	log  *zap.Logger
}

// New returns a Runner with defaults applied to opts.
func New(opts Options) *Runner {
	if opts.Delay == 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.L()
	}
	for _, src := range opts.Sources {
		injectLogger(src, opts.Logger)
	}
	injectLogger(opts.Local, opts.Logger)
	injectLogger(opts.Remote, opts.Logger)
	return &Runner{
		opts: opts,
		log:  opts.Logger.With(zap.String("component", "runner")),
	}
}

func injectLogger(v any, log *zap.Logger) {
	if s, ok := v.(loggerSetter); ok {
		s.SetLogger(log)
	}
}

// Run scrapes every source sequentially. A failing source is logged and
// skipped. The only error returned is ctx's, in which case the partial result
// is still returned and the snapshot written, but nothing is upserted.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		RunID:     uuid.New().String(),
		StartedAt: r.opts.Now().UTC(),
		PerSource: make(map[string]SourceResult, len(r.opts.Sources)),
	}
	log := r.log.With(zap.String("run_id", res.RunID))
	log.Info("starting scrape run", zap.Int("sources", len(r.opts.Sources)))

	var runErr error
	for i, src := range r.opts.Sources {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if i > 0 && r.opts.Delay > 0 {
			if err := r.opts.Sleep(ctx, r.opts.Delay); err != nil {
				runErr = err
				break
			}
		}

		sr, grants := r.runSource(ctx, log, src)
		res.PerSource[src.Key()] = sr
		res.Grants = append(res.Grants, grants...)
	}

	res.FinishedAt = r.opts.Now().UTC()
	if r.opts.Local != nil {
		if err := r.opts.Local.WriteSnapshot(sink.Snapshot{
			RunID:      res.RunID,
			StartedAt:  res.StartedAt,
			FinishedAt: res.FinishedAt,
			Grants:     res.Grants,
		}); err != nil {
			log.Error("failed to write run snapshot", zap.Error(err))
		}
	}

	if runErr != nil {
		log.Warn("scrape run interrupted", zap.Error(runErr), zap.Int("grants", len(res.Grants)))
		return res, runErr
	}

	res.Upserted = r.upsert(ctx, log, res.Grants)

	log.Info("scrape run complete",
		zap.Int("grants", len(res.Grants)),
		zap.Strings("failed_sources", res.Failed()),
		zap.Int64("upserted", res.Upserted),
		zap.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)),
	)
	return res, nil
}

func (r *Runner) runSource(ctx context.Context, log *zap.Logger, src source.Source) (SourceResult, []model.Grant) {
	sLog := log.With(zap.String("source", src.Key()))
	sLog.Info("scraping source", zap.String("name", src.Descriptor().Name))

	start := r.opts.Now()
	grants, err := scrape(ctx, src, r.opts.Fetcher)
	sr := SourceResult{Grants: len(grants), Elapsed: r.opts.Now().Sub(start)}

	if err != nil {
		sr.Err = err
		sLog.Error("source failed",
			zap.Error(err),
			zap.String("trace", eris.ToString(err, true)),
			zap.Int("partial_grants", len(grants)),
		)
	}
	if len(grants) == 0 {
		sLog.Warn("source returned no grants")
		return sr, nil
	}

	for _, g := range grants {
		if r.opts.Local == nil {
			break
		}
		if err := r.opts.Local.WriteRecord(g); err != nil {
			sLog.Warn("grant not fully saved", zap.Int("grant_id", g.GrantID), zap.Error(err))
			continue
		}
		sr.Written++
	}

	sLog.Info("source complete",
		zap.Int("grants", sr.Grants),
		zap.Int("written", sr.Written),
		zap.Duration("elapsed", sr.Elapsed),
	)
	return sr, grants
}

// scrape runs src, turning a panic into an error.
func scrape(ctx context.Context, src source.Source, f fetcher.Fetcher) (grants []model.Grant, err error) {
	defer func() {
		if p := recover(); p != nil {
			grants = nil
			err = eris.Errorf("runner: source %s panicked: %v", src.Key(), p)
		}
	}()
	return src.Scrape(ctx, f)
}

func (r *Runner) upsert(ctx context.Context, log *zap.Logger, grants []model.Grant) int64 {
	if r.opts.Remote == nil {
		log.Warn("remote sink not configured, skipping upload")
		return 0
	}
	if len(grants) == 0 {
		log.Info("no grants to upload")
		return 0
	}
	n, err := r.opts.Remote.Upsert(ctx, grants)
	if err != nil {
		log.Error("remote upsert failed",
			zap.Error(err),
			zap.String("trace", eris.ToString(err, true)),
			zap.Int("grants", len(grants)),
		)
		return 0
	}
	log.Info("uploaded grants", zap.Int64("rows", n))
	return n
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
