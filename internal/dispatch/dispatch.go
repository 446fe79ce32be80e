// Package dispatch delivers rendered notifications to recipients, one
// isolated attempt per recipient.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"stalwartbot/internal/eventbus"
	"stalwartbot/internal/events"
	"stalwartbot/internal/metrics"
	"stalwartbot/internal/pipeline/buffer"
	"stalwartbot/internal/render"
	"stalwartbot/internal/storage"
	"stalwartbot/internal/transport"
	logx "stalwartbot/pkg/logx"
)

const (
	DefaultSendTimeout = 10 * time.Second
	// Telegram allows about 30 messages per second per bot.
	DefaultRatePerSec = 25
)

var ErrInvalidRecipient = errors.New("dispatch: recipient is not a chat id")

// PreferenceResolver returns a recipient's preferences; zero Preferences
// mean defaults.
type PreferenceResolver interface {
	Preferences(ctx context.Context, recipient string) (storage.Preferences, error)
}

// LocaleResolver negotiates stored locale codes against the catalog.
type LocaleResolver interface {
	Resolve(code string) string
}

// Renderer bundles the formatter with the locale negotiation it pairs with.
// It is swapped as a unit when configuration changes.
type Renderer struct {
	Formatter *render.Formatter
	Locales   LocaleResolver
}

type Options struct {
	SendTimeout time.Duration
	RatePerSec  float64
	Log         logx.Logger
	Metrics     *metrics.Metrics
	Bus         eventbus.Bus
}

// Dispatcher sends notifications. Failures for one recipient are logged and
// counted and never affect the others; nothing is retried.
type Dispatcher struct {
	prefs    PreferenceResolver
	sender   transport.Sender
	renderer atomic.Pointer[Renderer]

	limiter *rate.Limiter
	timeout time.Duration
	log     logx.Logger
	metrics *metrics.Metrics
	bus     eventbus.Bus
}

func New(prefs PreferenceResolver, sender transport.Sender, r Renderer, opts Options) *Dispatcher {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = DefaultRatePerSec
	}
	if opts.Log.IsZero() {
		opts.Log = logx.Nop()
	}
	d := &Dispatcher{
		prefs:   prefs,
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), max(1, int(opts.RatePerSec)/5)),
		timeout: opts.SendTimeout,
		log:     opts.Log,
		metrics: opts.Metrics,
		bus:     opts.Bus,
	}
	d.renderer.Store(&r)
	return d
}

// SetRenderer swaps the formatter used for subsequent deliveries.
func (d *Dispatcher) SetRenderer(r Renderer) { d.renderer.Store(&r) }

// DeliverEvent sends ev to every recipient.
func (d *Dispatcher) DeliverEvent(ctx context.Context, recipients []string, ev events.WebhookEvent) {
	addr := events.SourceAddress(ev)
	for _, rcpt := range recipients {
		d.deliver(ctx, rcpt, ev.Type, addr, 1, func(f *render.Formatter, o render.Options) string {
			return f.Format(ev, o)
		})
	}
}

// DeliverBatch sends a grouped batch to each of its recipients.
func (d *Dispatcher) DeliverBatch(ctx context.Context, b buffer.Batch) {
	if len(b.Events) == 0 {
		return
	}
	addr := events.SourceAddress(b.Latest())
	for _, rcpt := range b.Recipients {
		d.deliver(ctx, rcpt, b.EventType, addr, len(b.Events), func(f *render.Formatter, o render.Options) string {
			return f.FormatGroup(b.EventType, b.Events, o)
		})
	}
}

type renderFunc func(f *render.Formatter, o render.Options) string

func (d *Dispatcher) deliver(ctx context.Context, recipient, eventType, addr string, n int, fn renderFunc) {
	start := time.Now()
	log := d.log.With(
		logx.String("msg_type", "event_notification"),
		logx.String("recipient", recipient),
		logx.String("event_type", eventType),
		logx.String("ip", addr),
	)

	var locale string
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("delivery panicked", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		r := d.renderer.Load()
		opts := d.options(ctx, recipient, r.Locales, log)
		locale = opts.Locale
		return d.send(ctx, recipient, fn(r.Formatter, opts))
	}()
	took := time.Since(start)

	if err != nil {
		log.Error("notification delivery failed", logx.String("locale", locale), logx.Err(err), logx.Duration("took", took))
		d.metrics.NotificationFailed(eventType, took)
	} else {
		log.Info("notification delivered", logx.String("locale", locale), logx.Int("events", n), logx.Duration("took", took))
		d.metrics.NotificationSent(eventType, took)
	}
	if d.bus != nil {
		typ := eventbus.TypeNotificationSent
		if err != nil {
			typ = eventbus.TypeNotificationFailed
		}
		d.bus.Publish(eventbus.Event{Type: typ, Data: eventbus.Notification{
			Recipient: recipient,
			EventType: eventType,
			Events:    n,
			Err:       err,
		}})
	}
}

// options resolves fresh preferences for recipient. Lookup failures fall
// back to defaults so the notification still goes out.
func (d *Dispatcher) options(ctx context.Context, recipient string, locales LocaleResolver, log logx.Logger) render.Options {
	var p storage.Preferences
	if d.prefs != nil {
		var err error
		if p, err = d.prefs.Preferences(ctx, recipient); err != nil {
			log.Warn("preferences lookup failed, using defaults", logx.Err(err))
			p = storage.Preferences{}
		}
	}
	locale := p.Locale
	if locales != nil {
		locale = locales.Resolve(locale)
	}
	return render.Options{Locale: locale, Timezone: p.Timezone, Short: p.Short}
}

func (d *Dispatcher) send(ctx context.Context, recipient, text string) error {
	chatID, err := strconv.ParseInt(strings.TrimSpace(recipient), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRecipient, recipient)
	}
	sctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.limiter.Wait(sctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	_, err = d.sender.SendText(sctx, transport.ChatTarget{ChatID: chatID}, text, &transport.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: true,
	})
	return err
}
