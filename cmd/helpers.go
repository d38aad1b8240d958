package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/peoplesearch-cli/internal/engine"
	"github.com/sells-group/peoplesearch-cli/internal/fetch"
	"github.com/sells-group/peoplesearch-cli/internal/sites"
	"github.com/sells-group/peoplesearch-cli/internal/store"
	"github.com/sells-group/peoplesearch-cli/pkg/proxyfetch"
)

// initStore opens the configured store backend and runs migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	var err error

	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	}
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// newEngine wires the proxy client, fetch executor, and site registry
// into an engine over the given store.
func newEngine(st store.Store, sink engine.MessageFunc) *engine.Engine {
	client := proxyfetch.NewClient(cfg.Proxy.Token,
		proxyfetch.WithBaseURL(cfg.Proxy.BaseURL),
		proxyfetch.WithCountry(cfg.Proxy.Country),
	)
	executor := fetch.NewExecutor(client, fetch.Options{
		RequestTimeout:    cfg.Engine.RequestTimeout(),
		MaxRetries:        cfg.Engine.MaxRetries,
		RetryBackoffBase:  cfg.Engine.RetryBackoffBase(),
		InterRequestDelay: cfg.Engine.InterRequestDelay(),
	})
	return engine.New(cfg, st, executor, sites.DefaultRegistry(), sink)
}
