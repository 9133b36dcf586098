package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/firwatch/notamwatch/internal/decode"
	"github.com/firwatch/notamwatch/internal/enrich"
	"github.com/firwatch/notamwatch/internal/ledger"
	"github.com/firwatch/notamwatch/internal/notify"
	"github.com/firwatch/notamwatch/internal/pipeline"
	"github.com/firwatch/notamwatch/pkg/avwx"
	"github.com/firwatch/notamwatch/pkg/telegram"
)

// initLedger opens the configured run-history backend and migrates it.
func initLedger(ctx context.Context) (ledger.Store, error) {
	var (
		st  ledger.Store
		err error
	)
	switch cfg.Ledger.Driver {
	case "postgres":
		st, err = ledger.NewPostgres(ctx, cfg.Ledger.DatabaseURL, cfg.Ledger.MaxEntries)
	case "sqlite", "":
		st, err = ledger.NewSQLite(cfg.Ledger.DatabaseURL, cfg.Ledger.MaxEntries)
	default:
		return nil, eris.Errorf("unknown ledger driver %q", cfg.Ledger.Driver)
	}
	if err != nil {
		return nil, eris.Wrap(err, "init ledger")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate ledger")
	}
	return st, nil
}

// buildPipeline assembles a fully wired pipeline from configuration. The
// caller owns the returned ledger store and must close it.
func buildPipeline(ctx context.Context) (*pipeline.Pipeline, ledger.Store, error) {
	led, err := initLedger(ctx)
	if err != nil {
		return nil, nil, err
	}

	feed := avwx.NewClient(cfg.Feed.Token,
		avwx.WithBaseURL(cfg.Feed.BaseURL),
		avwx.WithPageSize(cfg.Feed.PageSize),
		avwx.WithTimeout(time.Duration(cfg.Feed.TimeoutSecs)*time.Second),
	)

	pool := enrich.NewPoolFromKeys(cfg.Anthropic.Keys)
	if pool.Size() == 0 {
		zap.L().Warn("no explanation credentials configured, all explanations will be deferred")
	}
	decoder := decode.NewExecDecoder(cfg.Decoder.Command, cfg.Decoder.Args, time.Duration(cfg.Decoder.TimeoutSecs)*time.Second)
	coord := enrich.NewCoordinator(decoder, pool, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)

	loc, err := time.LoadLocation(cfg.Region.Timezone)
	if err != nil {
		zap.L().Warn("invalid region timezone, using UTC", zap.String("timezone", cfg.Region.Timezone))
		loc = time.UTC
	}
	tg := telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.ChatID)
	dispatcher := notify.NewDispatcher(tg, loc)

	return pipeline.New(cfg, feed, coord, dispatcher, led), led, nil
}
