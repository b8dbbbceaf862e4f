// Package app owns construction and lifecycle of every service in the
// process. Nothing here reads globals: the channel connection, the tick
// loop and the store handle all live on the App and are passed down
// explicitly.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmhodges/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"zuppa/internal/config"
	"zuppa/internal/dispatcher"
	"zuppa/internal/metrics"
	"zuppa/internal/scheduler"
	"zuppa/internal/store"
	"zuppa/internal/transport/telegram"
	"zuppa/internal/web"
	"zuppa/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	logs *logx.Service
	log  logx.Logger

	store   store.Store
	adapter *telegram.Adapter
	sched   *scheduler.Service
	web     *web.Server

	mu          sync.Mutex
	watchCancel context.CancelFunc
	watchDone   chan struct{}
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	met := metrics.New(reg)

	// A store that cannot open at startup is the one fatal condition.
	busyTimeout, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(store.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "store")))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	sendTimeout, err := config.ParseDurationOrDefault("delivery.send_timeout", cfg.Delivery.SendTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}

	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
		SendTimeout: sendTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}

	clk := clock.New()

	disp := dispatcher.New(dispatcher.Config{
		ChannelID:   cfg.Telegram.ChannelID,
		SendTimeout: sendTimeout,
		RatePerSec:  cfg.Delivery.RatePerSec,
	}, adapter, st, clk, log.With(logx.String("comp", "dispatcher")), met)

	sched := scheduler.New(scheduler.Config{
		Scan: cfg.Scheduler.Scan,
	}, scheduler.NewScanner(st), disp, clk, log.With(logx.String("comp", "scheduler")), met)

	var webSrv *web.Server
	if cfg.Web.Enabled {
		readTimeout, err := config.ParseDurationOrDefault("web.read_timeout", cfg.Web.ReadTimeout, 10*time.Second)
		if err != nil {
			return nil, err
		}
		writeTimeout, err := config.ParseDurationOrDefault("web.write_timeout", cfg.Web.WriteTimeout, 10*time.Second)
		if err != nil {
			return nil, err
		}
		idleTimeout, err := config.ParseDurationOrDefault("web.idle_timeout", cfg.Web.IdleTimeout, 60*time.Second)
		if err != nil {
			return nil, err
		}
		webSrv, err = web.New(web.Config{
			Addr:         cfg.Web.Addr,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		}, st, reg, log.With(logx.String("comp", "web")), met)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("web server: %w", err)
		}
	}

	return &App{
		cfgm:    cfgm,
		logs:    logSvc,
		log:     log,
		store:   st,
		adapter: adapter,
		sched:   sched,
		web:     webSrv,
	}, nil
}

// Start connects the notification channel, starts the tick loop and the web
// surface, and begins watching the config file for reloadable knobs.
func (a *App) Start(ctx context.Context) error {
	if err := a.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("connect channel: %w", err)
	}
	if err := a.sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	if a.web != nil {
		// A dead form is survivable; reminders keep flowing.
		if err := a.web.Start(ctx); err != nil {
			a.log.Error("web server failed to start, continuing without it", logx.Err(err))
			a.web = nil
		}
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.mu.Lock()
	a.watchCancel = cancel
	a.watchDone = done
	a.mu.Unlock()
	go func() {
		defer close(done)
		err := a.cfgm.Watch(watchCtx, a.applyReload)
		if err != nil && watchCtx.Err() == nil {
			a.log.Warn("config watch unavailable", logx.Err(err))
		}
	}()

	a.log.Info("started")
	return nil
}

// applyReload re-applies the knobs that are safe to change at runtime.
// Everything else (token, storage path, cadence) needs a restart.
func (a *App) applyReload(cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	a.log.Info("logging config re-applied", logx.String("level", cfg.Logging.Level))
}

// Stop tears everything down in reverse order: stop intake, drain the tick
// loop, disconnect the channel, then release the store handle.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	cancel := a.watchCancel
	done := a.watchDone
	a.watchCancel = nil
	a.watchDone = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}

	if a.web != nil {
		if err := a.web.Stop(ctx); err != nil {
			a.log.Warn("web shutdown", logx.Err(err))
		}
	}
	if err := a.sched.Stop(ctx); err != nil {
		a.log.Warn("scheduler shutdown", logx.Err(err))
	}
	if err := a.adapter.Disconnect(ctx); err != nil {
		a.log.Warn("channel disconnect", logx.Err(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("store close", logx.Err(err))
	}

	a.log.Info("stopped")
	return a.logs.Close()
}
