// Package app wires the checking service together and owns its lifecycle.
package app

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/orioks-monitoring/checking/internal/broker"
	"github.com/orioks-monitoring/checking/internal/config"
	"github.com/orioks-monitoring/checking/internal/database"
	"github.com/orioks-monitoring/checking/internal/eventbus"
	"github.com/orioks-monitoring/checking/internal/failure"
	"github.com/orioks-monitoring/checking/internal/logout"
	"github.com/orioks-monitoring/checking/internal/notify"
	"github.com/orioks-monitoring/checking/internal/queue"
	"github.com/orioks-monitoring/checking/internal/runtime/supervisor"
	"github.com/orioks-monitoring/checking/internal/scheduler"
	"github.com/orioks-monitoring/checking/internal/store"
	"github.com/orioks-monitoring/checking/internal/tracker"
	"github.com/orioks-monitoring/checking/internal/userdir"
	logx "github.com/orioks-monitoring/checking/pkg/logx"
)

type App struct {
	logs    *logx.Service
	log     logx.Logger
	manager *config.Manager
	rdb     *redis.Client
	db      *sqlx.DB
	sup     *supervisor.Supervisor
}

// New loads the config, builds every component, and starts the background
// goroutines under one supervisor.
func New(ctx context.Context, configPath string) (*App, error) {
	manager := config.NewManager(configPath)
	cfg, err := manager.Load()
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	manager.SetLogger(log.With(logx.String("component", "config")))

	rdb := queue.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
		log.With(logx.String("component", "redis")))

	db, err := database.Open(ctx, cfg.Database.Path)
	if err != nil {
		rdb.Close()
		logs.Close()
		return nil, err
	}

	minInterval, err := cfg.RequestSpacing()
	if err != nil {
		db.Close()
		rdb.Close()
		logs.Close()
		return nil, err
	}
	rpcTimeout, err := cfg.RPCTimeout()
	if err != nil {
		db.Close()
		rdb.Close()
		logs.Close()
		return nil, err
	}

	bus := eventbus.New()
	producer := queue.NewProducer(rdb, log.With(logx.String("component", "queue")))
	dispatcher := notify.NewDispatcher(producer, cfg.NotifierQueue(),
		log.With(logx.String("component", "notify")))

	transport := broker.NewRedisTransport(rdb, cfg.RequestsQueue(), cfg.ReplyPrefix(),
		log.With(logx.String("component", "broker")))
	brk := broker.New(broker.Config{
		MinInterval: minInterval,
		FetchGate:   cfg.Portal.RequestGate,
		LoginGate:   cfg.Portal.LoginGate,
		Timeout:     rpcTimeout,
	}, transport, bus, log.With(logx.String("component", "broker")))

	dir := userdir.New(db)
	snapshots := store.New(db)
	logoutClient := logout.NewClient(cfg.Logout.URL, cfg.Logout.Header, cfg.Logout.Token)
	accountant := failure.NewAccountant(dir, logoutClient, dispatcher,
		cfg.Portal.MaxFailedRequests, log.With(logx.String("component", "failure")))
	trk := tracker.New(brk, snapshots, dispatcher,
		log.With(logx.String("component", "tracker")))

	sched, err := scheduler.New(scheduler.Config{
		Schedule:          cfg.Scheduler.Schedule,
		NewsProbeAttempts: cfg.Scheduler.NewsProbeAttempts,
	}, trk, dir, accountant, snapshots, dispatcher, bus,
		log.With(logx.String("component", "scheduler")))
	if err != nil {
		db.Close()
		rdb.Close()
		logs.Close()
		return nil, err
	}

	sup := supervisor.New(ctx, supervisor.WithLogger(log))
	sup.GoRestart("config.watch", manager.Watch)

	// Logging settings and the cycle schedule follow config reloads.
	sup.Go0("config.apply", func(ctx context.Context) {
		ch := manager.Subscribe(1)
		defer manager.Unsubscribe(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case next, ok := <-ch:
				if !ok {
					return
				}
				logs.Apply(logx.Config{
					Level:   next.Logging.Level,
					Console: next.Logging.Console,
					File: logx.FileConfig{
						Enabled: next.Logging.File.Enabled,
						Path:    next.Logging.File.Path,
					},
				})
				if err := sched.SetSchedule(next.Scheduler.Schedule); err != nil {
					log.Warn("schedule update rejected",
						logx.String("schedule", next.Scheduler.Schedule),
						logx.Err(err))
				}
			}
		}
	})

	stats := queue.NewStats(rdb, log.With(logx.String("component", "stats")))
	sup.Go("stats", func(ctx context.Context) error {
		return stats.Run(ctx, bus)
	})

	sup.GoRestart("scheduler", sched.Run)

	log.Info("checking service started",
		logx.String("config", configPath),
		logx.String("notifier_queue", cfg.NotifierQueue()),
	)

	return &App{
		logs:    logs,
		log:     log,
		manager: manager,
		rdb:     rdb,
		db:      db,
		sup:     sup,
	}, nil
}

// Wait blocks until every goroutine exits or ctx is done.
func (a *App) Wait(ctx context.Context) error {
	return a.sup.Wait(ctx)
}

// Stop cancels the supervisor, waits for goroutines, and releases resources.
func (a *App) Stop(ctx context.Context) error {
	err := a.sup.Stop(ctx)
	if cerr := a.db.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if cerr := a.rdb.Close(); cerr != nil && err == nil {
		err = cerr
	}
	a.log.Info("checking service stopped")
	if cerr := a.logs.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
