package render

import (
	"strings"

	"stalwartbot/internal/events"
)

// Placeholder stands in for missing or empty field values.
const Placeholder = "—"

// shortFields is how many template fields survive in short mode.
const shortFields = 3

type field struct {
	label string // translation key
	value func(events.Data) string
}

type template struct {
	emoji   string
	section string // translation key; empty means connection details
	fields  []field
}

// Stringify renders a value for display: null and blank strings become the
// placeholder, lists are comma-joined after dropping blank entries.
func Stringify(v events.Value) string {
	switch v.Kind() {
	case events.KindNull:
		return Placeholder
	case events.KindString:
		s, _ := v.AsString()
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
		return Placeholder
	case events.KindStrings:
		parts := make([]string, 0, len(v.Strings()))
		for _, s := range v.Strings() {
			if s = strings.TrimSpace(s); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return Placeholder
		}
		return strings.Join(parts, ", ")
	default:
		return v.String()
	}
}

// pick returns the first non-null value among keys, stringified.
func pick(keys ...string) func(events.Data) string {
	return func(d events.Data) string { return Stringify(d.First(keys...)) }
}

func fld(label string, keys ...string) field { return field{label: label, value: pick(keys...)} }

var (
	anyIP = []string{"remoteIp", "ip", "source_ip"}

	connection = []field{
		fld("field.listener", "listenerId"),
		fld("field.local_port", "localPort"),
		fld("field.remote_ip", "remoteIp"),
		fld("field.remote_port", "remotePort"),
	}
)

func withConnection(lead ...field) []field {
	return append(lead, connection...)
}

var templates = map[string]template{
	"security.ip-blocked": {
		emoji: "🛡️",
		fields: []field{
			fld("field.listener", "listenerId"),
			fld("field.local_port", "localPort"),
			fld("field.remote_ip", anyIP...),
			fld("field.remote_port", "remotePort"),
		},
	},
	"auth.success": {
		emoji: "✅",
		fields: withConnection(
			fld("field.account", "accountName"),
			fld("field.account_id", "accountId"),
			fld("field.span_id", "spanId"),
		),
	},
	"auth.failed": {
		emoji: "❌",
		fields: withConnection(
			fld("field.account", "accountName"),
			fld("field.id", "id"),
			fld("field.span_id", "spanId"),
		),
	},
	"auth.error": {
		emoji: "⚠️",
		fields: withConnection(
			fld("field.details", "details", "error"),
			fld("field.span_id", "spanId"),
		),
	},
	"server.startup": {
		emoji:   "🚀",
		section: "section.server",
		fields:  []field{fld("field.version", "version")},
	},
	"server.startup-error": {
		emoji:   "💥",
		section: "section.error",
		fields: []field{
			fld("field.error", "error", "details", "message"),
			fld("field.details", "details", "message"),
		},
	},
	"delivery.delivered": {
		emoji:   "📬",
		section: "section.delivery",
		fields: []field{
			fld("field.from", "from"),
			fld("field.to", "to"),
			fld("field.hostname", "hostname"),
			fld("field.code", "code"),
			fld("field.details", "details"),
			fld("field.size", "size"),
			fld("field.elapsed", "elapsed"),
			fld("field.queue", "queueName"),
			fld("field.span_id", "spanId"),
			fld("field.total", "total"),
		},
	},
	"delivery.completed": {
		emoji:   "✅",
		section: "section.delivery",
		fields: []field{
			fld("field.from", "from"),
			fld("field.to", "to"),
			fld("field.size", "size"),
			fld("field.elapsed", "elapsed"),
			fld("field.queue", "queueName"),
			fld("field.span_id", "spanId"),
			fld("field.total", "total"),
		},
	},
	"delivery.failed": {
		emoji:   "❌",
		section: "section.delivery",
		fields: []field{
			fld("field.error", "error", "details"),
			fld("field.from", "from"),
			fld("field.to", "to", "recipient"),
			fld("field.remote_ip", anyIP...),
			fld("field.span_id", "spanId"),
			fld("field.message_id", "messageId"),
		},
	},
	"security.abuse-ban": {
		emoji: "🚫",
		fields: []field{
			fld("field.reason", "reason", "details"),
			fld("field.remote_ip", anyIP...),
			fld("field.account", "accountName"),
		},
	},
	"security.authentication-ban": {
		emoji: "🚫",
		fields: []field{
			fld("field.account", "accountName"),
			fld("field.remote_ip", anyIP...),
			fld("field.reason", "reason", "details"),
		},
	},
}

// HasTemplate reports whether eventType has a dedicated layout.
func HasTemplate(eventType string) bool {
	_, ok := templates[eventType]
	return ok
}
