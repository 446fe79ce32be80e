// Package app wires the webhook server, the notification pipeline and the
// Telegram bot into one process.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stalwartbot/internal/bot"
	"stalwartbot/internal/config"
	"stalwartbot/internal/dispatch"
	"stalwartbot/internal/eventbus"
	"stalwartbot/internal/events"
	"stalwartbot/internal/maintenance"
	"stalwartbot/internal/metrics"
	"stalwartbot/internal/pipeline"
	"stalwartbot/internal/recorder"
	rtsup "stalwartbot/internal/runtime/supervisor"
	"stalwartbot/internal/storage"
	"stalwartbot/internal/transport"
	"stalwartbot/internal/transport/telegram/adapter"
	"stalwartbot/internal/transport/telegram/router"
	"stalwartbot/internal/webhook"
	logx "stalwartbot/pkg/logx"
)

const updatesBuffer = 256

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapter *adapter.Adapter
	disp    *dispatch.Dispatcher
	pipe    *pipeline.Pipeline
	rec     *recorder.Recorder
	maint   *maintenance.Service
	hook    *webhook.Server
	cmds    *router.Manager
	bot     *bot.Handlers

	updates chan transport.Message
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	// The adapter logs through a console logger until the log service
	// exists; the log service then uses the adapter for its Telegram sink.
	bootLog := logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "telegram"))
	set, err := mapSettings(cfg)
	if err != nil {
		return nil, err
	}
	ad, err := adapter.New(set.adapter, bootLog)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}

	logSvc, log := logx.New(mapLogConfig(cfg), ad)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	log = log.With(logx.String("comp", "app"))

	store, err := storage.Open(set.storage, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	if n := seedSubscriptions(context.Background(), store, cfg.Subscriptions, log); n > 0 {
		log.Info("subscriptions seeded from config", logx.Int("created", n))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	bus := eventbus.New()

	cat, renderer := newRenderer(cfg)
	dopts := set.dispatch
	dopts.Log = log.With(logx.String("comp", "dispatch"))
	dopts.Metrics = m
	dopts.Bus = bus
	disp := dispatch.New(store, ad, renderer, dopts)

	plog := log.With(logx.String("comp", "pipeline"))
	pipe := pipeline.New(pipeline.Deps{
		Registry:    events.Stalwart,
		Subscribers: store,
		Deliverer:   disp,
		Log:         plog,
		Metrics:     m,
		Bus:         bus,
	}, pipeline.Resolve(mapPolicySettings(cfg), plog))

	rec := recorder.New(bus, store, log.With(logx.String("comp", "recorder")))
	maint := maintenance.New(pipe, store, cfg.Storage.EventsRetentionDays, nil, m, log.With(logx.String("comp", "maintenance")))

	promH := promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	hook := webhook.New(set.webhook, mapCredentials(cfg), pipe, m, promH, log.With(logx.String("comp", "webhook")))

	handlers := bot.New(bot.Deps{
		Store:    store,
		Catalog:  cat,
		Registry: events.Stalwart,
		Stats:    rec,
		Pipeline: pipe,
		Log:      log.With(logx.String("comp", "bot")),
	})
	cmds := router.New(log.With(logx.String("comp", "commands")), ad, handlers.Denied)
	cmds.SetAccess(cfg.Telegram.AllowedUserIDs, cfg.Telegram.AdminUserIDs)
	handlers.Install(cmds)

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		adapter: ad,
		disp:    disp,
		pipe:    pipe,
		rec:     rec,
		maint:   maint,
		hook:    hook,
		cmds:    cmds,
		bot:     handlers,
		updates: make(chan transport.Message, updatesBuffer),
	}, nil
}

// Handler exposes the webhook routes, mainly for tests.
func (a *App) Handler() http.Handler { return a.hook.Handler() }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		_, err := mapSettings(cfg)
		return err
	})

	a.sup.Go0("recorder", a.rec.Run)

	if err := a.maint.Start(); err != nil {
		return err
	}

	if wh := a.cfgm.Get().Webhook; wh.Key == "" && wh.Username == "" && wh.Password == "" {
		a.log.Warn("webhook accepts unauthenticated requests; set webhook.key or basic auth")
	}

	// A port that cannot be bound is fatal: without the webhook nothing arrives.
	a.sup.Go("webhook.http", a.hook.Run)

	if a.cfgm.Get().Telegram.SendOnly {
		a.log.Info("send-only mode; bot commands disabled")
	} else {
		if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
			return err
		}
		a.sup.Go("commands.dispatch", func(c context.Context) error {
			return a.cmds.DispatchLoop(c, a.updates)
		})
		a.sup.Go0("commands.menu", func(c context.Context) {
			mctx, cancel := context.WithTimeout(c, 10*time.Second)
			defer cancel()
			if err := a.adapter.UpdateMenuCommands(mctx, a.cmds.MenuCommands()); err != nil {
				a.log.Warn("command menu update failed", logx.Err(err))
			}
		})
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started",
		logx.String("webhook_addr", a.cfgm.Get().Webhook.Addr),
		logx.String("storage", a.cfgm.Get().Storage.Driver),
	)
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancelling the run context stops the webhook listener first, so no
	// new events are admitted while the pipeline drains.
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		if max <= 0 {
			a.log.Warn("stop step skipped (deadline reached)", logx.String("name", name))
			return
		}
		stepCtx, cancel := context.WithTimeout(stepCtx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("pipeline", 10*time.Second, a.pipe.Close)
	step("maintenance", 2*time.Second, func(c context.Context) error { a.maint.Stop(c); return nil })
	step("adapter", 3*time.Second, a.adapter.Stop)
	step("supervisor", 3*time.Second, a.sup.Wait)
	step("storage", 2*time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
