// Command webhook-test posts a signed test event to a running bot, the way
// Stalwart would, to check reception, signature and Basic auth end to end.
//
//	webhook-test [-url http://localhost:3000] [-type auth.failed]
//
// Credentials default to WEBHOOK_KEY, WEBHOOK_USERNAME and WEBHOOK_PASSWORD
// (WEEBHOOK_* also accepted).
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"stalwartbot/internal/events"
	"stalwartbot/internal/webhook"
)

func env(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func main() {
	var (
		target    = flag.String("url", env("WEBHOOK_URL", "WEEBHOOK_URL"), "bot webhook URL")
		eventType = flag.String("type", "auth.success", "event type to send")
		key       = flag.String("key", env("WEBHOOK_KEY", "WEEBHOOK_KEY"), "HMAC signing key (empty: unsigned)")
		user      = flag.String("user", env("WEBHOOK_USERNAME", "WEEBHOOK_USERNAME"), "Basic auth username")
		pass      = flag.String("pass", env("WEBHOOK_PASSWORD", "WEEBHOOK_PASSWORD"), "Basic auth password")
		timeout   = flag.Duration("timeout", 10*time.Second, "request timeout")
	)
	flag.Parse()
	if *target == "" {
		*target = "http://localhost:3000"
	}
	if !events.Stalwart.Known(*eventType) {
		fmt.Fprintf(os.Stderr, "warning: %q is not a known event type (%s)\n", *eventType, strings.Join(events.Stalwart.Types(), ", "))
	}

	ev := events.WebhookEvent{
		ID:        "test-" + uuid.NewString(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Type:      *eventType,
		Data:      events.SampleData(*eventType),
	}
	body, err := json.Marshal(events.Payload{Events: []events.WebhookEvent{ev}})
	if err != nil {
		fmt.Fprintln(os.Stderr, "encode:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	url := strings.TrimSuffix(*target, "/") + "/"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	if *key != "" {
		req.Header.Set(webhook.SignatureHeader, webhook.Sign(body, *key))
	}
	if *user != "" || *pass != "" {
		req.SetBasicAuth(*user, *pass)
	}

	fmt.Printf("sending %s (%s) to %s\n", ev.Type, ev.ID, url)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "send:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	fmt.Println("status:", resp.Status)
	if len(bytes.TrimSpace(text)) > 0 {
		fmt.Println("response:", strings.TrimSpace(string(text)))
	}
	if resp.StatusCode/100 != 2 {
		fmt.Fprintln(os.Stderr, "server rejected the request; check the signing key and Basic auth")
		os.Exit(1)
	}
	fmt.Println("ok: webhook received and verified")
}
