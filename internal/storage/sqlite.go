package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"stalwartbot/internal/events"
	logx "stalwartbot/pkg/logx"
)

//go:embed migrations/*.sql
var migrations embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (*sqliteStore, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db, log: log}, nil
}

// migrate runs all pending goose migrations.
func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nowText() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func (s *sqliteStore) SubscribersFor(ctx context.Context, eventType string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id FROM subscriptions WHERE event_type = ? ORDER BY chat_id`, eventType)
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}

func (s *sqliteStore) Subscriptions(ctx context.Context, recipient string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_type FROM subscriptions WHERE chat_id = ? ORDER BY event_type`, normalize(recipient))
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Subscribe(ctx context.Context, recipient, eventType string) (bool, error) {
	recipient = normalize(recipient)
	if recipient == "" {
		return false, ErrInvalidRecipient
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO subscriptions(chat_id, event_type, created_at) VALUES(?,?,?)`,
		recipient, eventType, nowText())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *sqliteStore) Unsubscribe(ctx context.Context, recipient, eventType string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE chat_id = ? AND event_type = ?`, normalize(recipient), eventType)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *sqliteStore) Preferences(ctx context.Context, recipient string) (Preferences, error) {
	var (
		p     Preferences
		short int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT locale, timezone, short FROM preferences WHERE chat_id = ?`, normalize(recipient),
	).Scan(&p.Locale, &p.Timezone, &short)
	if errors.Is(err, sql.ErrNoRows) {
		return Preferences{}, nil
	}
	if err != nil {
		return Preferences{}, err
	}
	p.Short = short != 0
	return p, nil
}

func (s *sqliteStore) SetPreferences(ctx context.Context, recipient string, p Preferences) error {
	recipient = normalize(recipient)
	if recipient == "" {
		return ErrInvalidRecipient
	}
	short := 0
	if p.Short {
		short = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences(chat_id, locale, timezone, short, updated_at) VALUES(?,?,?,?,?)
		 ON CONFLICT(chat_id) DO UPDATE SET
		   locale=excluded.locale, timezone=excluded.timezone, short=excluded.short, updated_at=excluded.updated_at`,
		recipient, p.Locale, p.Timezone, short, nowText())
	return err
}

func (s *sqliteStore) AppendEvent(ctx context.Context, e StoredEvent) error {
	var data any
	if len(e.Data) > 0 {
		b, err := json.Marshal(e.Data)
		if err != nil {
			return err
		}
		data = string(b)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events(id, type, created_at, source_ip, received_at, data) VALUES(?,?,?,?,?,?)`,
		e.ID, e.Type, e.CreatedAt, nullStr(e.SourceIP), e.ReceivedAt.UnixMilli(), data)
	return err
}

func (s *sqliteStore) RecentEvents(ctx context.Context, limit int) ([]StoredEvent, error) {
	if limit <= 0 {
		limit = recentCap
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, created_at, COALESCE(source_ip, ''), received_at, COALESCE(data, '')
		 FROM events ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var (
			e    StoredEvent
			ms   int64
			data string
		)
		if err := rows.Scan(&e.ID, &e.Type, &e.CreatedAt, &e.SourceIP, &ms, &data); err != nil {
			return nil, err
		}
		e.ReceivedAt = time.UnixMilli(ms)
		if data != "" {
			var d events.Data
			if err := json.Unmarshal([]byte(data), &d); err == nil {
				e.Data = d
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqliteStore) RecordBlockedAddress(ctx context.Context, ip, eventID string, at time.Time) error {
	ip = normalize(ip)
	if ip == "" {
		return nil
	}
	ms := at.UnixMilli()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blocked_ips(ip, event_id, first_seen, last_seen, count) VALUES(?,?,?,?,1)
		 ON CONFLICT(ip) DO UPDATE SET last_seen=excluded.last_seen, count=count+1`,
		ip, eventID, ms, ms)
	return err
}

func (s *sqliteStore) PurgeEventsBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE received_at < ?`, t.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
