// Package bot implements the Telegram command surface: subscription
// management, per-chat preferences and a few admin diagnostics.
package bot

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"stalwartbot/internal/clock"
	"stalwartbot/internal/events"
	"stalwartbot/internal/i18n"
	"stalwartbot/internal/pipeline"
	"stalwartbot/internal/recorder"
	"stalwartbot/internal/storage"
	"stalwartbot/internal/transport/telegram/router"
	logx "stalwartbot/pkg/logx"
	"stalwartbot/pkg/tgui"
)

const (
	allKeyword    = "all"
	recentLimit   = 10
	testEventType = "auth.failed"
)

// Processor runs one event through the notification pipeline.
type Processor interface {
	Process(ctx context.Context, ev events.WebhookEvent) pipeline.Outcome
}

// StatsSource exposes the recorder counters.
type StatsSource interface {
	Snapshot() recorder.Stats
}

type Deps struct {
	Store    storage.Store
	Catalog  *i18n.Catalog
	Registry events.Registry
	Stats    StatsSource
	Pipeline Processor
	Clock    clock.Clock
	Log      logx.Logger
}

type Handlers struct {
	store    storage.Store
	catalog  atomic.Pointer[i18n.Catalog]
	registry events.Registry
	stats    StatsSource
	pipeline Processor
	clock    clock.Clock
	log      logx.Logger
}

func New(d Deps) *Handlers {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Registry == nil {
		d.Registry = events.Stalwart
	}
	if d.Catalog == nil {
		d.Catalog = i18n.New(i18n.Supported[0])
	}
	h := &Handlers{
		store:    d.Store,
		registry: d.Registry,
		stats:    d.Stats,
		pipeline: d.Pipeline,
		clock:    clock.OrReal(d.Clock),
		log:      d.Log,
	}
	h.catalog.Store(d.Catalog)
	return h
}

// SetCatalog swaps the catalog, e.g. after the default locale changed.
func (h *Handlers) SetCatalog(c *i18n.Catalog) {
	if c != nil {
		h.catalog.Store(c)
	}
}

func (h *Handlers) cat() *i18n.Catalog { return h.catalog.Load() }

// Install registers every command on m.
func (h *Handlers) Install(m *router.Manager) {
	m.Register(h.Commands()...)
}

func (h *Handlers) Commands() []router.Command {
	return []router.Command{
		{Name: "start", Description: "Show the welcome message", Handle: h.cmdStart},
		{Name: "help", Aliases: []string{"commands"}, Description: "List commands", Handle: h.cmdHelp},
		{Name: "events", Description: "List available events", Handle: h.cmdEvents},
		{Name: "subscribe", Aliases: []string{"sub"}, Description: "Subscribe to an event", Usage: "/subscribe <event|all>", Handle: h.cmdSubscribe},
		{Name: "unsubscribe", Aliases: []string{"unsub"}, Description: "Unsubscribe from an event", Usage: "/unsubscribe <event|all>", Handle: h.cmdUnsubscribe},
		{Name: "list", Aliases: []string{"subscriptions"}, Description: "Show your subscriptions", Handle: h.cmdList},
		{Name: "prefs", Aliases: []string{"settings"}, Description: "Show your preferences", Handle: h.cmdPrefs},
		{Name: "lang", Aliases: []string{"language"}, Description: "Set the notification language", Usage: "/lang <code>", Handle: h.cmdLang},
		{Name: "timezone", Aliases: []string{"tz"}, Description: "Set the notification timezone", Usage: "/timezone <zone>", Handle: h.cmdTimezone},
		{Name: "short", Description: "Toggle short notifications", Usage: "/short on|off", Handle: h.cmdShort},
		{Name: "status", Description: "Show bridge counters", Access: router.AccessAdmin, Handle: h.cmdStatus},
		{Name: "recent", Description: "Show recently received events", Usage: "/recent [n]", Access: router.AccessAdmin, Handle: h.cmdRecent},
		{Name: "test", Description: "Run a test event through the pipeline", Usage: "/test [event]", Access: router.AccessAdmin, Timeout: 30 * time.Second, Handle: h.cmdTest},
	}
}

// Denied is the router's refusal renderer.
func (h *Handlers) Denied(ctx context.Context, req *router.Request, admin bool) string {
	loc := h.locale(ctx, req)
	if admin {
		return h.t(loc, "bot.admin_denied")
	}
	return h.t(loc, "bot.denied")
}

func recipient(req *router.Request) string {
	return strconv.FormatInt(req.Chat.ChatID, 10)
}

func (h *Handlers) prefs(ctx context.Context, req *router.Request) storage.Preferences {
	p, err := h.store.Preferences(ctx, recipient(req))
	if err != nil {
		req.Logger.Warn("load preferences failed", logx.Err(err))
		return storage.Preferences{}
	}
	return p
}

func (h *Handlers) locale(ctx context.Context, req *router.Request) string {
	return h.cat().Resolve(h.prefs(ctx, req).Locale)
}

func (h *Handlers) t(loc, key string) string { return h.cat().Translate(loc, key) }

func (h *Handlers) tf(loc, key string, kv ...string) string {
	vars := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		vars[kv[i]] = string(tgui.Esc(kv[i+1]))
	}
	return h.cat().Translatef(loc, key, vars)
}

func (h *Handlers) fail(ctx context.Context, req *router.Request, loc string, err error) error {
	req.Logger.Error("command failed", logx.Err(err))
	_ = req.Reply(ctx, h.t(loc, "bot.error"))
	return err
}

func (h *Handlers) cmdStart(ctx context.Context, req *router.Request) error {
	return req.Reply(ctx, h.t(h.locale(ctx, req), "bot.welcome"))
}

func (h *Handlers) cmdHelp(ctx context.Context, req *router.Request) error {
	loc := h.locale(ctx, req)
	lines := []tgui.H{tgui.Raw(h.t(loc, "bot.help"))}
	for _, c := range h.Commands() {
		if c.Access == router.AccessAdmin {
			continue
		}
		usage := c.Usage
		if usage == "" {
			usage = "/" + c.Name
		}
		lines = append(lines, tgui.JoinH(" ", tgui.Code(usage), tgui.Esc("- "+c.Description)))
	}
	return req.Reply(ctx, tgui.Lines(lines...).String())
}

func (h *Handlers) cmdEvents(ctx context.Context, req *router.Request) error {
	loc := h.locale(ctx, req)
	lines := []tgui.H{tgui.Raw(h.t(loc, "bot.events"))}
	for _, typ := range h.registry.Types() {
		lines = append(lines, tgui.JoinH(" ", tgui.Code(typ), tgui.Esc("("+h.registry.Severity(typ).String()+")")))
	}
	return req.Reply(ctx, tgui.Lines(lines...).String())
}

// eventArg normalizes the first argument. ok is false for unknown types.
func (h *Handlers) eventArg(req *router.Request) (string, bool) {
	arg := strings.ToLower(strings.TrimSpace(req.Arg(0)))
	if arg == allKeyword {
		return arg, true
	}
	return arg, h.registry.Known(arg)
}

func (h *Handlers) cmdSubscribe(ctx context.Context, req *router.Request) error {
	loc := h.locale(ctx, req)
	if len(req.Args) == 0 {
		return req.Reply(ctx, h.t(loc, "bot.sub_usage"))
	}
	typ, ok := h.eventArg(req)
	if !ok {
		return req.Reply(ctx, h.t(loc, "bot.unknown_event"))
	}
	who := recipient(req)

	if typ == allKeyword {
		added := 0
		for _, t := range h.registry.Types() {
			created, err := h.store.Subscribe(ctx, who, t)
			if err != nil {
				return h.fail(ctx, req, loc, err)
			}
			if created {
				added++
			}
		}
		req.Logger.Info("subscribed to all events", logx.Int("added", added))
		if added == 0 {
			return req.Reply(ctx, h.t(loc, "bot.sub_all_already"))
		}
		return req.Reply(ctx, h.tf(loc, "bot.sub_all", "n", strconv.Itoa(added)))
	}

	created, err := h.store.Subscribe(ctx, who, typ)
	if err != nil {
		return h.fail(ctx, req, loc, err)
	}
	if !created {
		return req.Reply(ctx, h.tf(loc, "bot.sub_already", "event", typ))
	}
	req.Logger.Info("subscribed", logx.String("event_type", typ))
	return req.Reply(ctx, h.tf(loc, "bot.sub_ok", "event", typ))
}

func (h *Handlers) cmdUnsubscribe(ctx context.Context, req *router.Request) error {
	loc := h.locale(ctx, req)
	if len(req.Args) == 0 {
		return req.Reply(ctx, h.t(loc, "bot.unsub_usage"))
	}
	who := recipient(req)
	typ := strings.ToLower(strings.TrimSpace(req.Arg(0)))

	if typ == allKeyword {
		current, err := h.store.Subscriptions(ctx, who)
		if err != nil {
			return h.fail(ctx, req, loc, err)
		}
		removed := 0
		for _, t := range current {
			ok, err := h.store.Unsubscribe(ctx, who, t)
			if err != nil {
				return h.fail(ctx, req, loc, err)
			}
			if ok {
				removed++
			}
		}
		req.Logger.Info("unsubscribed from all events", logx.Int("removed", removed))
		return req.Reply(ctx, h.tf(loc, "bot.unsub_all", "n", strconv.Itoa(removed)))
	}

	// Unknown types are still removable so stale subscriptions can be cleaned up.
	removed, err := h.store.Unsubscribe(ctx, who, typ)
	if err != nil {
		return h.fail(ctx, req, loc, err)
	}
	if !removed {
		return req.Reply(ctx, h.tf(loc, "bot.unsub_missing", "event", typ))
	}
	req.Logger.Info("unsubscribed", logx.String("event_type", typ))
	return req.Reply(ctx, h.tf(loc, "bot.unsub_ok", "event", typ))
}

func (h *Handlers) cmdList(ctx context.Context, req *router.Request) error {
	loc := h.locale(ctx, req)
	subs, err := h.store.Subscriptions(ctx, recipient(req))
	if err != nil {
		return h.fail(ctx, req, loc, err)
	}
	if len(subs) == 0 {
		return req.Reply(ctx, h.t(loc, "bot.list_empty"))
	}
	lines := []tgui.H{tgui.Raw(h.t(loc, "bot.list"))}
	for _, s := range subs {
		lines = append(lines, tgui.JoinH(" ", tgui.Raw("•"), tgui.Code(s)))
	}
	return req.Reply(ctx, tgui.Lines(lines...).String())
}

func (h *Handlers) cmdPrefs(ctx context.Context, req *router.Request) error {
	p := h.prefs(ctx, req)
	loc := h.cat().Resolve(p.Locale)
	tz := p.Timezone
	if tz == "" {
		tz = "-"
	}
	short := "off"
	if p.Short {
		short = "on"
	}
	return req.Reply(ctx, tgui.Lines(
		tgui.Raw(h.t(loc, "bot.prefs")),
		tgui.JoinH(": ", tgui.Esc(h.t(loc, "bot.prefs_language")), tgui.Code(loc)),
		tgui.JoinH(": ", tgui.Esc(h.t(loc, "bot.prefs_timezone")), tgui.Code(tz)),
		tgui.JoinH(": ", tgui.Esc(h.t(loc, "bot.prefs_short")), tgui.Code(short)),
	).String())
}

// updatePrefs loads, mutates and stores the caller's preferences.
func (h *Handlers) updatePrefs(ctx context.Context, req *router.Request, fn func(p *storage.Preferences)) (storage.Preferences, error) {
	who := recipient(req)
	p, err := h.store.Preferences(ctx, who)
	if err != nil {
		return p, err
	}
	fn(&p)
	return p, h.store.SetPreferences(ctx, who, p)
}

func (h *Handlers) cmdLang(ctx context.Context, req *router.Request) error {
	loc := h.locale(ctx, req)
	code := strings.TrimSpace(req.Arg(0))
	if code == "" {
		return req.Reply(ctx, h.t(loc, "bot.lang_usage"))
	}
	next := h.cat().Resolve(code)
	if _, err := h.updatePrefs(ctx, req, func(p *storage.Preferences) { p.Locale = next }); err != nil {
		return h.fail(ctx, req, loc, err)
	}
	req.Logger.Info("locale changed", logx.String("locale", next))
	return req.Reply(ctx, h.tf(next, "bot.lang_ok", "locale", next))
}

func (h *Handlers) cmdTimezone(ctx context.Context, req *router.Request) error {
	loc := h.locale(ctx, req)
	zone := strings.TrimSpace(req.Arg(0))
	if zone == "" {
		return req.Reply(ctx, h.t(loc, "bot.tz_usage"))
	}
	if _, err := time.LoadLocation(zone); err != nil {
		return req.Reply(ctx, h.tf(loc, "bot.tz_invalid", "zone", zone))
	}
	if _, err := h.updatePrefs(ctx, req, func(p *storage.Preferences) { p.Timezone = zone }); err != nil {
		return h.fail(ctx, req, loc, err)
	}
	req.Logger.Info("timezone changed", logx.String("timezone", zone))
	return req.Reply(ctx, h.tf(loc, "bot.tz_ok", "zone", zone))
}

func (h *Handlers) cmdShort(ctx context.Context, req *router.Request) error {
	loc := h.locale(ctx, req)
	var on bool
	switch strings.ToLower(strings.TrimSpace(req.Arg(0))) {
	case "on", "yes", "true", "1":
		on = true
	case "off", "no", "false", "0":
	default:
		return req.Reply(ctx, h.t(loc, "bot.short_usage"))
	}
	if _, err := h.updatePrefs(ctx, req, func(p *storage.Preferences) { p.Short = on }); err != nil {
		return h.fail(ctx, req, loc, err)
	}
	state := "off"
	if on {
		state = "on"
	}
	return req.Reply(ctx, h.tf(loc, "bot.short_ok", "state", state))
}

func (h *Handlers) cmdStatus(ctx context.Context, req *router.Request) error {
	loc := h.locale(ctx, req)
	if h.stats == nil {
		return req.Reply(ctx, h.t(loc, "bot.error"))
	}
	s := h.stats.Snapshot()
	now := h.clock.Now()

	lines := []tgui.H{
		tgui.Raw(h.t(loc, "bot.status")),
		tgui.Esc(fmt.Sprintf("uptime: %s", now.Sub(s.StartedAt).Truncate(time.Second))),
		tgui.Esc(fmt.Sprintf("received: %d", s.Received)),
		tgui.Esc(fmt.Sprintf("sent: %d  failed: %d", s.Sent, s.Failed)),
	}
	reasons := make([]string, 0, len(s.Skipped))
	for r := range s.Skipped {
		reasons = append(reasons, r)
	}
	slices.Sort(reasons)
	for _, r := range reasons {
		lines = append(lines, tgui.Esc(fmt.Sprintf("skipped %s: %d", r, s.Skipped[r])))
	}
	if !s.LastEvent.IsZero() {
		lines = append(lines, tgui.JoinH(" ",
			tgui.Esc("last:"),
			tgui.Code(s.LastType),
			tgui.Esc(fmt.Sprintf("(%s ago)", now.Sub(s.LastEvent).Truncate(time.Second))),
		))
	}
	if s.WriteErrors > 0 || s.BusDropped > 0 {
		lines = append(lines, tgui.Esc(fmt.Sprintf("write errors: %d  bus dropped: %d", s.WriteErrors, s.BusDropped)))
	}
	return req.Reply(ctx, tgui.Lines(lines...).String())
}

func (h *Handlers) cmdRecent(ctx context.Context, req *router.Request) error {
	loc := h.locale(ctx, req)
	limit := recentLimit
	if n, err := strconv.Atoi(req.Arg(0)); err == nil && n > 0 {
		limit = min(n, 50)
	}
	evs, err := h.store.RecentEvents(ctx, limit)
	if err != nil {
		return h.fail(ctx, req, loc, err)
	}
	if len(evs) == 0 {
		return req.Reply(ctx, h.t(loc, "bot.recent_empty"))
	}
	lines := []tgui.H{tgui.Raw(h.t(loc, "bot.recent"))}
	for _, e := range evs {
		parts := []tgui.H{
			tgui.Esc(e.ReceivedAt.UTC().Format("01-02 15:04:05")),
			tgui.Code(e.Type),
		}
		if e.SourceIP != "" {
			parts = append(parts, tgui.Esc(e.SourceIP))
		}
		lines = append(lines, tgui.JoinH(" ", parts...))
	}
	return req.Reply(ctx, tgui.Lines(lines...).String())
}

func (h *Handlers) cmdTest(ctx context.Context, req *router.Request) error {
	loc := h.locale(ctx, req)
	if h.pipeline == nil {
		return req.Reply(ctx, h.t(loc, "bot.error"))
	}
	typ := strings.ToLower(strings.TrimSpace(req.Arg(0)))
	if typ == "" {
		typ = testEventType
	}
	ev := events.WebhookEvent{
		ID:        uuid.NewString(),
		CreatedAt: h.clock.Now().UTC().Format(time.RFC3339),
		Type:      typ,
		Data:      events.SampleData(typ),
	}
	out := h.pipeline.Process(ctx, ev)
	req.Logger.Info("test event processed", logx.String("event_id", ev.ID), logx.String("event_type", typ), logx.String("outcome", string(out)))
	return req.Reply(ctx, h.tf(loc, "bot.test_sent", "event", typ, "outcome", string(out)))
}
