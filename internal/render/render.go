// Package render turns webhook events into Telegram HTML messages.
package render

import (
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"stalwartbot/internal/events"
	"stalwartbot/internal/i18n"
	"stalwartbot/pkg/tgui"
)

// DefaultLookupURL prefixes the source address in the correlation link.
const DefaultLookupURL = "https://www.abuseipdb.com/check/"

// Translator resolves locale strings. Missing keys come back unchanged.
type Translator interface {
	Translate(locale, key string) string
	Translatef(locale, key string, vars map[string]string) string
	DateStyle(locale string) i18n.DateStyle
}

// Options are the per-recipient rendering preferences.
type Options struct {
	Locale   string
	Timezone string
	Short    bool
}

type Config struct {
	DefaultTimezone string
	LookupURL       string
}

// Formatter renders events. It is safe for concurrent use and never fails:
// malformed data degrades to placeholders or the generic layout.
type Formatter struct {
	tr        Translator
	defLoc    *time.Location
	lookupURL string
	extract   events.AddressExtractor

	zones sync.Map // name -> *time.Location
}

func New(tr Translator, cfg Config) *Formatter {
	f := &Formatter{
		tr:        tr,
		defLoc:    time.UTC,
		lookupURL: strings.TrimSpace(cfg.LookupURL),
		extract:   events.SourceAddress,
	}
	if f.lookupURL == "" {
		f.lookupURL = DefaultLookupURL
	}
	if loc, ok := f.zone(cfg.DefaultTimezone); ok {
		f.defLoc = loc
	}
	return f
}

// Format renders a single event for one recipient.
func (f *Formatter) Format(ev events.WebhookEvent, opts Options) string {
	var body tgui.H
	if t, ok := templates[ev.Type]; ok {
		body = f.templated(ev, t, opts)
	} else {
		body = f.generic(ev, opts)
	}
	if ev.IsTest() {
		banner := "🧪 " + tgui.B(f.tr.Translate(opts.Locale, "banner.test")) + " — " +
			tgui.Esc(f.tr.Translate(opts.Locale, "banner.test_msg"))
		body = banner + "\n\n" + body
	}
	return body.String()
}

func (f *Formatter) templated(ev events.WebhookEvent, t template, opts Options) tgui.H {
	loc := opts.Locale
	lines := []tgui.H{
		tgui.Raw(t.emoji+" ") + tgui.B(f.tr.Translate(loc, "title."+ev.Type)),
		"",
	}
	lines = append(lines, f.header(ev, opts)...)

	section := t.section
	if section == "" {
		section = "section.connection"
	}
	lines = append(lines, "", "━━━ "+tgui.Esc(f.tr.Translate(loc, section))+" ━━━")

	fields := t.fields
	if opts.Short && len(fields) > shortFields {
		fields = fields[:shortFields]
	}
	for _, fd := range fields {
		lines = append(lines, "• "+tgui.Esc(f.tr.Translate(loc, fd.label))+" · "+tgui.Code(fd.value(ev.Data)))
	}

	if link := f.link(ev, loc); link != "" {
		lines = append(lines, "", link)
	}
	return tgui.Lines(lines...)
}

func (f *Formatter) header(ev events.WebhookEvent, opts Options) []tgui.H {
	loc := opts.Locale
	return []tgui.H{
		"📋 " + tgui.B(f.tr.Translate(loc, "header.event")) + " · " + tgui.Code(ev.Type),
		"🕐 " + tgui.B(f.tr.Translate(loc, "header.date")) + " · " + tgui.Esc(f.Timestamp(ev.CreatedAt, opts)),
		"🆔 " + tgui.B(f.tr.Translate(loc, "header.ref")) + " · " + tgui.Code(ev.ID),
	}
}

func (f *Formatter) generic(ev events.WebhookEvent, opts Options) tgui.H {
	lines := []tgui.H{
		"📬 " + tgui.B(ev.Type),
		"🕐 " + tgui.Esc(f.Timestamp(ev.CreatedAt, opts)),
		"🆔 " + tgui.Code(ev.ID),
	}
	if data := ev.Data.Without(events.TestMarkerKey); len(data) > 0 {
		if raw, err := json.MarshalIndent(data, "", "  "); err == nil {
			lines = append(lines, "", tgui.Pre(string(raw)))
		}
	}
	if link := f.link(ev, opts.Locale); link != "" {
		lines = append(lines, "", link)
	}
	return tgui.Lines(lines...)
}

func (f *Formatter) link(ev events.WebhookEvent, locale string) tgui.H {
	addr := f.extract(ev)
	if addr == "" {
		return ""
	}
	return "🔗 " + tgui.Link(f.tr.Translate(locale, "link.lookup"), f.lookupURL+url.PathEscape(addr))
}

// Timestamp formats an ISO-8601 timestamp in the recipient's timezone (the
// default zone when unset or unknown) using the locale's date style.
// Unparseable input is returned as-is.
func (f *Formatter) Timestamp(raw string, opts Options) string {
	t, ok := parseTime(raw)
	if !ok {
		return raw
	}
	loc, ok := f.zone(opts.Timezone)
	if !ok {
		loc = f.defLoc
	}
	style := f.tr.DateStyle(opts.Locale)
	out := t.In(loc).Format(style.Layout)
	if style.Months[0] != "" {
		out = strings.Replace(out, "MON", style.Months[t.In(loc).Month()-1], 1)
	}
	return out
}

func (f *Formatter) zone(name string) (*time.Location, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}
	if v, ok := f.zones.Load(name); ok {
		return v.(*time.Location), true
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, false
	}
	f.zones.Store(name, loc)
	return loc, true
}

func parseTime(raw string) (time.Time, bool) {
	return events.WebhookEvent{CreatedAt: raw}.Time()
}
