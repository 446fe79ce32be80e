package app

import (
	"context"
	"strings"

	"stalwartbot/internal/config"
	"stalwartbot/internal/pipeline"
	logx "stalwartbot/pkg/logx"
)

// reloadLoop applies published configs until ctx is done.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config in the channel.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			if newCfg == nil {
				continue
			}
			a.applyConfig(ctx, lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

// applyConfig pushes the live-reloadable settings of newCfg to the running
// components. Settings that need a restart are only reported.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if config.RequiresRestart(oldCfg, newCfg) {
		a.log.Warn("config change requires restart to take full effect", logx.String("changed", strings.Join(sections, ",")))
	}

	a.logs.Apply(mapLogConfig(newCfg))

	a.pipe.Apply(pipeline.Resolve(mapPolicySettings(newCfg), a.log.With(logx.String("comp", "pipeline"))))

	cat, renderer := newRenderer(newCfg)
	a.disp.SetRenderer(renderer)
	a.bot.SetCatalog(cat)

	a.hook.SetCredentials(mapCredentials(newCfg))
	a.maint.SetRetentionDays(newCfg.Storage.EventsRetentionDays)
	a.cmds.SetAccess(newCfg.Telegram.AllowedUserIDs, newCfg.Telegram.AdminUserIDs)
	if n := seedSubscriptions(ctx, a.store, newCfg.Subscriptions, a.log); n > 0 {
		a.log.Info("subscriptions seeded from config", logx.Int("created", n))
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}
