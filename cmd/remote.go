package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/grant-scraper/internal/config"
	"github.com/sells-group/grant-scraper/internal/sink"
)

// remoteSink is an upserter that can also create its table.
type remoteSink interface {
	sink.Upserter
	Migrate(ctx context.Context) error
}

var (
	_ remoteSink = (*sink.PostgresSink)(nil)
	_ remoteSink = (*sink.SQLiteSink)(nil)
	_ remoteSink = (*sink.RESTSink)(nil)
)

// openRemote connects the configured remote sink. It returns nil, nil when no
// endpoint is configured.
func openRemote(ctx context.Context, rc config.RemoteConfig) (remoteSink, error) {
	if !rc.Configured() {
		return nil, nil
	}
	switch rc.EffectiveDriver() {
	case config.DriverREST:
		s, err := sink.NewRESTSink(rc.URL, rc.Key, rc.Table)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverPostgres:
		s, err := sink.ConnectPostgres(ctx, rc.URL, rc.Key, rc.Table)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverSQLite:
		s, err := sink.NewSQLiteSink(rc.URL)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("unsupported remote driver: %s", rc.Driver)
	}
}

// requireRemote is openRemote for commands that cannot run local-only.
func requireRemote(ctx context.Context, rc config.RemoteConfig) (remoteSink, error) {
	r, err := openRemote(ctx, rc)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, eris.New("remote sink not configured: set SUPABASE_URL or remote.url")
	}
	return r, nil
}
