package storage

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
)

// ErrNotExportable is returned by Copy when the source cannot be listed.
var ErrNotExportable = errors.New("storage: source store cannot be exported")

// Snapshot is every subscription and preference of a store.
type Snapshot struct {
	Subscriptions map[string][]string
	Preferences   map[string]Preferences
}

// Exporter is implemented by stores that can list their whole content.
type Exporter interface {
	Export(ctx context.Context) (Snapshot, error)
}

// CopyResult counts what Copy wrote.
type CopyResult struct {
	Recipients    int
	Subscriptions int
	Preferences   int
}

// Copy adds the subscriptions and preferences of src to dst. Existing
// entries in dst are kept; preferences in src overwrite those in dst.
// Only event types accepted by keep are copied (nil keeps everything).
func Copy(ctx context.Context, dst Store, src Store, keep func(eventType string) bool) (CopyResult, error) {
	ex, ok := src.(Exporter)
	if !ok {
		return CopyResult{}, ErrNotExportable
	}
	snap, err := ex.Export(ctx)
	if err != nil {
		return CopyResult{}, fmt.Errorf("export: %w", err)
	}

	var res CopyResult
	recipients := slices.Sorted(maps.Keys(snap.Subscriptions))
	for _, who := range recipients {
		res.Recipients++
		for _, typ := range snap.Subscriptions[who] {
			if keep != nil && !keep(typ) {
				continue
			}
			created, err := dst.Subscribe(ctx, who, typ)
			if err != nil {
				return res, fmt.Errorf("subscribe %s/%s: %w", who, typ, err)
			}
			if created {
				res.Subscriptions++
			}
		}
	}
	for _, who := range slices.Sorted(maps.Keys(snap.Preferences)) {
		if err := dst.SetPreferences(ctx, who, snap.Preferences[who]); err != nil {
			return res, fmt.Errorf("preferences %s: %w", who, err)
		}
		res.Preferences++
	}
	return res, nil
}

func (s *fileStore) Export(_ context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrClosed
	}
	snap := Snapshot{
		Subscriptions: make(map[string][]string, len(s.subs)),
		Preferences:   maps.Clone(s.prefs),
	}
	for who, types := range s.subs {
		snap.Subscriptions[who] = slices.Clone(types)
	}
	return snap, nil
}

func (s *sqliteStore) Export(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Subscriptions: map[string][]string{}, Preferences: map[string]Preferences{}}

	rows, err := s.db.QueryContext(ctx, `SELECT chat_id, event_type FROM subscriptions ORDER BY chat_id, event_type`)
	if err != nil {
		return snap, err
	}
	defer rows.Close()
	for rows.Next() {
		var who, typ string
		if err := rows.Scan(&who, &typ); err != nil {
			return snap, err
		}
		snap.Subscriptions[who] = append(snap.Subscriptions[who], typ)
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}

	prows, err := s.db.QueryContext(ctx, `SELECT chat_id, locale, timezone, short FROM preferences`)
	if err != nil {
		return snap, err
	}
	defer prows.Close()
	for prows.Next() {
		var (
			who   string
			p     Preferences
			short int
		)
		if err := prows.Scan(&who, &p.Locale, &p.Timezone, &short); err != nil {
			return snap, err
		}
		p.Short = short != 0
		snap.Preferences[who] = p
	}
	for _, types := range snap.Subscriptions {
		sort.Strings(types)
	}
	return snap, prows.Err()
}
