package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/grant-scraper/internal/fetcher"
	"github.com/sells-group/grant-scraper/internal/runner"
	"github.com/sells-group/grant-scraper/internal/sink"
	"github.com/sells-group/grant-scraper/internal/source"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape every grant site and save the results",
	Long: `Scrape the configured grant sites in order (phac, kindred, otf), write
each grant to data/<source>/grant.{csv,json} and the combined
data/all_grants.{csv,json} files, then upsert the run's grants to the remote
table when one is configured.

Use --source to restrict the run, --local-only to skip the upload.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("scrape"); err != nil {
			return err
		}

		log := zap.L().With(zap.String("command", "scrape"))

		opts, err := parseScrapeFlags(cmd)
		if err != nil {
			return err
		}

		reg := source.NewDefaultRegistry(cfg.Sources.URLs())
		keys := opts.sources
		if len(keys) == 0 {
			keys = cfg.Run.Sources
		}
		sources, err := reg.Select(keys)
		if err != nil {
			return eris.Wrap(err, "scrape")
		}

		local, err := sink.NewLocal(cfg.Output.DataDir)
		if err != nil {
			return eris.Wrap(err, "scrape")
		}

		var remote sink.Upserter
		if !opts.localOnly {
			r, err := openRemote(ctx, cfg.Remote)
			switch {
			case err != nil:
				log.Error("remote sink unavailable, continuing local-only", zap.Error(err))
			case r != nil:
				defer r.Close()
				remote = r
			}
		}

		delay := cfg.Run.SourceDelay()
		if opts.delay != nil {
			delay = *opts.delay
			if delay == 0 {
				delay = -1
			}
		}

		httpOpts := cfg.Fetch.HTTPOptions()
		httpOpts.Logger = log

		r := runner.New(runner.Options{
			Sources: sources,
			Fetcher: fetcher.NewHTTPFetcher(httpOpts),
			Local:   local,
			Remote:  remote,
			Delay:   delay,
			Logger:  log,
		})

		res, err := r.Run(ctx)
		if res != nil {
			printRunSummary(os.Stdout, res, keysOf(sources))
		}
		if err != nil {
			return eris.Wrap(err, "scrape")
		}
		return nil
	},
}

type scrapeFlags struct {
	sources   []string
	localOnly bool
	delay     *time.Duration
}

func init() {
	scrapeCmd.Flags().String("source", "", "comma-separated source keys (e.g., phac,otf)")
	scrapeCmd.Flags().Bool("local-only", false, "skip the remote upsert")
	scrapeCmd.Flags().Duration("delay", 0, "pause between sources (default from run.source_delay_secs)")
	rootCmd.AddCommand(scrapeCmd)
}

// parseScrapeFlags extracts the scrape options from the cobra command flags.
func parseScrapeFlags(cmd *cobra.Command) (scrapeFlags, error) {
	var opts scrapeFlags

	sourcesStr, _ := cmd.Flags().GetString("source")
	if sourcesStr != "" {
		opts.sources = splitAndTrim(sourcesStr)
	}

	opts.localOnly, _ = cmd.Flags().GetBool("local-only")

	if cmd.Flags().Changed("delay") {
		d, err := cmd.Flags().GetDuration("delay")
		if err != nil {
			return scrapeFlags{}, err
		}
		if d < 0 {
			return scrapeFlags{}, eris.Errorf("scrape: --delay must not be negative, got %s", d)
		}
		opts.delay = &d
	}

	return opts, nil
}

func keysOf(sources []source.Source) []string {
	keys := make([]string, len(sources))
	for i, s := range sources {
		keys[i] = s.Key()
	}
	return keys
}

// printRunSummary writes one line per source in run order.
func printRunSummary(out io.Writer, res *runner.Result, order []string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tGRANTS\tWRITTEN\tSTATUS")
	_, _ = fmt.Fprintln(w, "------\t------\t-------\t------")

	for _, key := range order {
		sr, ok := res.PerSource[key]
		status := "ok"
		switch {
		case !ok:
			status = "skipped"
		case sr.Err != nil:
			status = "failed"
		case sr.Grants == 0:
			status = "empty"
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", key, sr.Grants, sr.Written, status)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nrun %s: %d grants, %d upserted\n", res.RunID, len(res.Grants), res.Upserted)
}
