package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"podcred/internal/admin"
	"podcred/internal/auth"
	"podcred/internal/cache"
	"podcred/internal/config"
	"podcred/internal/confirm"
	"podcred/internal/db"
	"podcred/internal/eth"
	"podcred/internal/handlers"
	"podcred/internal/issuance"
	"podcred/internal/logging"
	"podcred/internal/queries"
	"podcred/internal/status"
	"podcred/internal/verify"
)

const connectTimeout = 15 * time.Second

// app holds every wired component. Optional backends that fail to connect
// are replaced by their in-memory versions.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	client   *eth.Client
	store    cache.Store
	ledger   db.Ledger
	queries  *queries.Queries
	issuer   *issuance.Issuer
	checker  *status.Checker
	verifier *verify.Verifier
	tracker  *confirm.Tracker
	approver *admin.Approver
	auth     *auth.Service

	closers []func()
}

func bootstrap(c *cli.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if c.IsSet(rpcFlag.Name) {
		cfg.Chain.RPCURL = c.String(rpcFlag.Name)
	}
	if c.IsSet(listenFlag.Name) {
		cfg.Server.Address = c.String(listenFlag.Name)
	}

	logger, err := logging.Build(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	ctx, cancel := context.WithTimeout(c.Context, connectTimeout)
	defer cancel()

	a.client, err = eth.Dial(ctx, cfg, logger.With(zap.String("module", "eth")))
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, a.client.Close)

	a.store = a.openCache(ctx)
	a.ledger = a.openLedger()

	a.queries = queries.New(logger.With(zap.String("module", "queries")), a.client, a.store)
	a.issuer = issuance.NewIssuer(logger.With(zap.String("module", "issuance")), a.client)
	a.checker = status.NewChecker(logger.With(zap.String("module", "status")), a.queries)
	a.verifier = verify.New(logger.With(zap.String("module", "verify")), a.client)
	a.tracker = confirm.NewTracker(cfg.Issuance, logger.With(zap.String("module", "confirm")), a.client, a.ledger, a.queries)
	a.approver = admin.NewApprover(logger.With(zap.String("module", "admin")), a.issuer, a.tracker, a.checker)
	a.auth = auth.NewService(logger.With(zap.String("module", "auth")), a.store, []byte(cfg.Auth.JWTSecret), cfg.Auth.NonceTTL, cfg.Auth.SessionTTL)

	return a, nil
}

func (a *app) openCache(ctx context.Context) cache.Store {
	if a.cfg.Redis.URL == "" {
		a.logger.Info("No redis URL configured, using in-memory cache")
		return cache.NewMemoryStore()
	}

	store, err := cache.ConnectRedis(ctx, a.cfg.Redis.URL)
	if err != nil {
		a.logger.Warn("Redis unavailable, using in-memory cache", zap.Error(err))
		return cache.NewMemoryStore()
	}
	a.closers = append(a.closers, func() { _ = store.Close() })
	return store
}

func (a *app) openLedger() db.Ledger {
	if a.cfg.Database.URL == "" {
		a.logger.Info("No database URL configured, using in-memory ledger")
		return db.NewMemoryLedger()
	}

	conn, err := db.Open(a.cfg.Database.URL, a.logger)
	if err != nil {
		a.logger.Warn("Database unavailable, using in-memory ledger", zap.Error(err))
		return db.NewMemoryLedger()
	}
	if sqlDB, err := conn.DB(); err == nil {
		a.closers = append(a.closers, func() { _ = sqlDB.Close() })
	}
	return db.NewGormLedger(conn)
}

func (a *app) api() *handlers.API {
	return handlers.New(handlers.Deps{
		Logger:   a.logger,
		Config:   a.cfg,
		Writer:   a.client,
		Queries:  a.queries,
		Issuer:   a.issuer,
		Tracker:  a.tracker,
		Approver: a.approver,
		Checker:  a.checker,
		Verifier: a.verifier,
		Ledger:   a.ledger,
		Auth:     a.auth,
	})
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
