package render

import (
	"strconv"

	"stalwartbot/internal/events"
	"stalwartbot/pkg/tgui"
)

// GroupIndexLimit caps the per-event index of a grouped message.
const GroupIndexLimit = 5

// FormatGroup renders a batch of same-type events. A single event renders
// exactly like Format; larger batches get a count header, a short index of
// the first events and the full rendering of the most recent one.
func (f *Formatter) FormatGroup(eventType string, evs []events.WebhookEvent, opts Options) string {
	switch len(evs) {
	case 0:
		return ""
	case 1:
		return f.Format(evs[0], opts)
	}

	loc := opts.Locale
	title := f.tr.Translate(loc, "title."+eventType)
	if title == "title."+eventType {
		title = eventType
	}
	lines := []tgui.H{
		"📬 " + tgui.B(strconv.Itoa(len(evs))+"× "+title),
		"",
	}
	for i, ev := range evs {
		if i == GroupIndexLimit {
			break
		}
		addr := f.extract(ev)
		if addr == "" {
			addr = Placeholder
		}
		lines = append(lines, tgui.Esc(strconv.Itoa(i+1)+". ")+tgui.Code(tgui.TruncRunes(ev.ID, 40))+" · "+tgui.Code(addr))
	}
	if rest := len(evs) - GroupIndexLimit; rest > 0 {
		lines = append(lines, tgui.Esc(f.tr.Translatef(loc, "group.more", map[string]string{"n": strconv.Itoa(rest)})))
	}
	lines = append(lines, "", tgui.B(f.tr.Translate(loc, "group.latest")+":"), "")
	return tgui.Lines(lines...).String() + "\n" + f.Format(evs[len(evs)-1], opts)
}
