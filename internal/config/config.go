// Package config loads grant-scraper settings from config.yaml, GRANTS_*
// environment variables and the SUPABASE_* credentials.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/grant-scraper/internal/fetcher"
	"github.com/sells-group/grant-scraper/internal/source"
)

// Remote drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverREST     = "rest"
)

// Config holds the full application configuration.
type Config struct {
	Remote  RemoteConfig  `yaml:"remote" mapstructure:"remote"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Run     RunConfig     `yaml:"run" mapstructure:"run"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Sources SourcesConfig `yaml:"sources" mapstructure:"sources"`
}

// RemoteConfig configures the remote grant table. For postgres, URL is a
// connection string and Key its password; for rest, URL is the Supabase
// project URL and Key its API key; for sqlite, URL is the file path.
type RemoteConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	URL    string `yaml:"url" mapstructure:"url"`
	Key    string `yaml:"key" mapstructure:"key"`
	Table  string `yaml:"table" mapstructure:"table"`
}

// Configured reports whether a remote endpoint is set.
func (r RemoteConfig) Configured() bool {
	return r.URL != ""
}

// EffectiveDriver returns the driver to use. A postgres driver with an
// http(s) URL means a Supabase project URL, which is served over REST.
func (r RemoteConfig) EffectiveDriver() string {
	if r.Driver == DriverPostgres && isHTTPURL(r.URL) {
		return DriverREST
	}
	return r.Driver
}

func isHTTPURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// FetchConfig configures the HTTP fetcher.
type FetchConfig struct {
	UserAgent        string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts      int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryBackoffMs   int    `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	DetailIntervalMs int    `yaml:"detail_interval_ms" mapstructure:"detail_interval_ms"`
}

// HTTPOptions converts the settings for fetcher.NewHTTPFetcher.
func (f FetchConfig) HTTPOptions() fetcher.HTTPOptions {
	return fetcher.HTTPOptions{
		UserAgent:    f.UserAgent,
		Timeout:      time.Duration(f.TimeoutSecs) * time.Second,
		MaxAttempts:  f.MaxAttempts,
		RetryBackoff: time.Duration(f.RetryBackoffMs) * time.Millisecond,
		HostInterval: time.Duration(f.DetailIntervalMs) * time.Millisecond,
	}
}

// RunConfig configures a scrape run.
type RunConfig struct {
	SourceDelaySecs int      `yaml:"source_delay_secs" mapstructure:"source_delay_secs"`
	Sources         []string `yaml:"sources" mapstructure:"sources"`
}

// SourceDelay returns the runner delay; a non-positive setting disables it.
func (r RunConfig) SourceDelay() time.Duration {
	if r.SourceDelaySecs <= 0 {
		return -1
	}
	return time.Duration(r.SourceDelaySecs) * time.Second
}

// OutputConfig configures local files.
type OutputConfig struct {
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	File   string `yaml:"file" mapstructure:"file"`
}

// SourcesConfig holds the site URLs.
type SourcesConfig struct {
	PHAC    PageConfig `yaml:"phac" mapstructure:"phac"`
	Kindred PageConfig `yaml:"kindred" mapstructure:"kindred"`
	OTF     OTFConfig  `yaml:"otf" mapstructure:"otf"`
}

// PageConfig holds a single entry URL.
type PageConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// OTFConfig holds the Ontario Trillium Foundation grant type pages.
type OTFConfig struct {
	SeedURL string `yaml:"seed_url" mapstructure:"seed_url"`
	GrowURL string `yaml:"grow_url" mapstructure:"grow_url"`
}

// URLs converts the settings for source.NewDefaultRegistry.
func (s SourcesConfig) URLs() source.URLs {
	return source.URLs{
		PHAC:    s.PHAC.URL,
		Kindred: s.Kindred.URL,
		OTFSeed: s.OTF.SeedURL,
		OTFGrow: s.OTF.GrowURL,
	}
}

// Load reads configuration from config.yaml, environment variables, and defaults.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GRANTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("remote.url", "GRANTS_REMOTE_URL", "SUPABASE_URL"); err != nil {
		return nil, eris.Wrap(err, "config: bind remote.url")
	}
	if err := v.BindEnv("remote.key", "GRANTS_REMOTE_KEY", "SUPABASE_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind remote.key")
	}

	// Defaults
	urls := source.DefaultURLs()
	v.SetDefault("remote.driver", DriverPostgres)
	v.SetDefault("remote.url", "")
	v.SetDefault("remote.key", "")
	v.SetDefault("remote.table", "Grant")
	v.SetDefault("fetch.user_agent", fetcher.DefaultUserAgent)
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.retry_backoff_ms", 2000)
	v.SetDefault("fetch.detail_interval_ms", 2000)
	v.SetDefault("run.source_delay_secs", 5)
	v.SetDefault("run.sources", []string{"phac", "kindred", "otf"})
	v.SetDefault("output.data_dir", "data")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "logs/scraper_run.log")
	v.SetDefault("sources.phac.url", urls.PHAC)
	v.SetDefault("sources.kindred.url", urls.Kindred)
	v.SetDefault("sources.otf.seed_url", urls.OTFSeed)
	v.SetDefault("sources.otf.grow_url", urls.OTFGrow)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is "scrape", "push" or
// "migrate"; push and migrate require a remote endpoint.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Remote.Driver {
	case DriverPostgres, DriverSQLite, DriverREST:
	default:
		errs = append(errs, fmt.Sprintf("remote.driver must be %q, %q or %q, got %q", DriverPostgres, DriverREST, DriverSQLite, c.Remote.Driver))
	}
	if c.Remote.Driver != DriverSQLite && c.Remote.Table == "" {
		errs = append(errs, "remote.table is required")
	}
	if c.Remote.Driver == DriverREST && c.Remote.Configured() && !isHTTPURL(c.Remote.URL) {
		errs = append(errs, "remote.url must be an http(s) Supabase project URL for the rest driver")
	}

	switch mode {
	case "scrape":
		if c.Fetch.MaxAttempts < 1 {
			errs = append(errs, "fetch.max_attempts must be >= 1")
		}
		if c.Fetch.TimeoutSecs < 1 {
			errs = append(errs, "fetch.timeout_secs must be >= 1")
		}
		if c.Output.DataDir == "" {
			errs = append(errs, "output.data_dir is required")
		}
	case "push", "migrate":
		if !c.Remote.Configured() {
			errs = append(errs, "remote.url (or SUPABASE_URL) is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger. Output goes to stdout and,
// when cfg.File is set, to that file; its directory must already exist.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	zapCfg.OutputPaths = []string{"stdout"}
	if cfg.File != "" {
		zapCfg.OutputPaths = append(zapCfg.OutputPaths, cfg.File)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
