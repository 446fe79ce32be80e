// Command migrate-subscriptions copies subscriptions and preferences from one
// store to another, typically from subscriptions.json into SQLite.
//
//	migrate-subscriptions -from-path subscriptions.json -to-driver sqlite -to-path stalwartbot.db
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"stalwartbot/internal/events"
	"stalwartbot/internal/storage"
	logx "stalwartbot/pkg/logx"
)

func main() {
	var (
		fromDriver = flag.String("from-driver", "file", "source storage driver (file|sqlite)")
		fromPath   = flag.String("from-path", "subscriptions.json", "source storage path")
		toDriver   = flag.String("to-driver", "sqlite", "target storage driver (file|sqlite)")
		toPath     = flag.String("to-path", "stalwartbot.db", "target storage path")
		all        = flag.Bool("all-types", false, "also copy event types the bot does not know")
	)
	flag.Parse()

	log := logx.NewConsole("info").With(logx.String("comp", "migrate"))
	if err := run(context.Background(), log,
		storage.Config{Driver: *fromDriver, Path: *fromPath},
		storage.Config{Driver: *toDriver, Path: *toPath},
		*all,
	); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log logx.Logger, from, to storage.Config, all bool) error {
	if from == to {
		return fmt.Errorf("source and target are the same store")
	}
	if _, err := os.Stat(from.Path); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	src, err := storage.Open(from, log)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := storage.Open(to, log)
	if err != nil {
		return err
	}
	defer dst.Close()

	keep := events.Stalwart.Known
	if all {
		keep = nil
	}
	res, err := storage.Copy(ctx, dst, src, keep)
	if err != nil {
		return err
	}
	log.Info("migration done",
		logx.String("from", from.Driver+":"+from.Path),
		logx.String("to", to.Driver+":"+to.Path),
		logx.Int("recipients", res.Recipients),
		logx.Int("subscriptions_added", res.Subscriptions),
		logx.Int("preferences", res.Preferences),
	)
	return nil
}
