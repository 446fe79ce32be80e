package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	logx "stalwartbot/pkg/logx"
)

const (
	prefsKey   = "__preferences"
	blockedKey = "__blocked_ips"

	recentCap = 200
)

// fileStore keeps subscriptions and preferences in one JSON document:
//
//	{"<chat id>": ["auth.failed", ...], "__preferences": {"<chat id>": {...}}}
//
// Received events go to <prefix>.events.jsonl next to it. With an empty
// path nothing touches the disk.
type fileStore struct {
	log logx.Logger

	mu         sync.Mutex
	path       string
	eventsPath string
	eventsFile *os.File
	closed     bool

	subs    map[string][]string
	prefs   map[string]Preferences
	blocked map[string]blockedRecord
	recent  []StoredEvent
}

type blockedRecord struct {
	EventID   string    `json:"eventId"`
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
	Count     int       `json:"count"`
}

func openFile(path string, log logx.Logger) (*fileStore, error) {
	s := &fileStore{
		log:     log,
		path:    strings.TrimSpace(path),
		subs:    map[string][]string{},
		prefs:   map[string]Preferences{},
		blocked: map[string]blockedRecord{},
	}
	if s.path == "" {
		return s, nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, err
	}
	if err := s.load(); err != nil {
		return nil, err
	}

	s.eventsPath = strings.TrimSuffix(s.path, filepath.Ext(s.path)) + ".events.jsonl"
	if err := s.loadRecent(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("event log unreadable, starting empty", logx.String("path", s.eventsPath), logx.Err(err))
	}
	f, err := os.OpenFile(s.eventsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	s.eventsFile = f
	return s, nil
}

func (s *fileStore) load() error {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	for k, raw := range doc {
		switch k {
		case prefsKey:
			if err := json.Unmarshal(raw, &s.prefs); err != nil {
				s.log.Warn("ignoring malformed preferences", logx.Err(err))
			}
		case blockedKey:
			if err := json.Unmarshal(raw, &s.blocked); err != nil {
				s.log.Warn("ignoring malformed blocked address list", logx.Err(err))
			}
		default:
			var types []string
			if err := json.Unmarshal(raw, &types); err != nil {
				continue
			}
			if len(types) > 0 {
				s.subs[k] = types
			}
		}
	}
	if s.prefs == nil {
		s.prefs = map[string]Preferences{}
	}
	if s.blocked == nil {
		s.blocked = map[string]blockedRecord{}
	}
	return nil
}

func (s *fileStore) loadRecent() error {
	f, err := os.Open(s.eventsPath)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		var e StoredEvent
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		s.pushRecent(e)
	}
	return sc.Err()
}

func (s *fileStore) pushRecent(e StoredEvent) {
	s.recent = append(s.recent, e)
	if len(s.recent) > recentCap {
		s.recent = slices.Clone(s.recent[len(s.recent)-recentCap:])
	}
}

// saveLocked writes the document atomically (tmp file + rename).
func (s *fileStore) saveLocked() error {
	if s.path == "" {
		return nil
	}
	doc := make(map[string]any, len(s.subs)+2)
	for k, v := range s.subs {
		doc[k] = v
	}
	doc[prefsKey] = s.prefs
	if len(s.blocked) > 0 {
		doc[blockedKey] = s.blocked
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.eventsFile != nil {
		err := s.eventsFile.Close()
		s.eventsFile = nil
		return err
	}
	return nil
}

func (s *fileStore) SubscribersFor(_ context.Context, eventType string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	var out []string
	for id, types := range s.subs {
		if slices.Contains(types, eventType) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *fileStore) Subscriptions(_ context.Context, recipient string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := slices.Clone(s.subs[normalize(recipient)])
	sort.Strings(out)
	return out, nil
}

func (s *fileStore) Subscribe(_ context.Context, recipient, eventType string) (bool, error) {
	recipient = normalize(recipient)
	if recipient == "" {
		return false, ErrInvalidRecipient
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	if slices.Contains(s.subs[recipient], eventType) {
		return false, nil
	}
	s.subs[recipient] = append(s.subs[recipient], eventType)
	return true, s.saveLocked()
}

func (s *fileStore) Unsubscribe(_ context.Context, recipient, eventType string) (bool, error) {
	recipient = normalize(recipient)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	types := s.subs[recipient]
	idx := slices.Index(types, eventType)
	if idx < 0 {
		return false, nil
	}
	types = slices.Delete(types, idx, idx+1)
	if len(types) == 0 {
		delete(s.subs, recipient)
	} else {
		s.subs[recipient] = types
	}
	return true, s.saveLocked()
}

func (s *fileStore) Preferences(_ context.Context, recipient string) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Preferences{}, ErrClosed
	}
	return s.prefs[normalize(recipient)], nil
}

func (s *fileStore) SetPreferences(_ context.Context, recipient string, p Preferences) error {
	recipient = normalize(recipient)
	if recipient == "" {
		return ErrInvalidRecipient
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.prefs[recipient] = p
	return s.saveLocked()
}

func (s *fileStore) AppendEvent(_ context.Context, e StoredEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.pushRecent(e)
	if s.eventsFile == nil {
		return nil
	}
	return json.NewEncoder(s.eventsFile).Encode(e)
}

func (s *fileStore) RecentEvents(_ context.Context, limit int) ([]StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	n := len(s.recent)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]StoredEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.recent[i])
	}
	return out, nil
}

func (s *fileStore) RecordBlockedAddress(_ context.Context, ip, eventID string, at time.Time) error {
	ip = normalize(ip)
	if ip == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	rec, ok := s.blocked[ip]
	if !ok {
		rec = blockedRecord{EventID: eventID, FirstSeen: at}
	}
	rec.LastSeen = at
	rec.Count++
	s.blocked[ip] = rec
	return s.saveLocked()
}

func (s *fileStore) PurgeEventsBefore(_ context.Context, t time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	before := len(s.recent)
	s.recent = slices.DeleteFunc(s.recent, func(e StoredEvent) bool { return e.ReceivedAt.Before(t) })

	if s.eventsFile == nil {
		return int64(before - len(s.recent)), nil
	}
	return s.rewriteLogLocked(t)
}

var renameFile = os.Rename

// rewriteLogLocked drops log lines older than t by rewriting the file.
func (s *fileStore) rewriteLogLocked(t time.Time) (int64, error) {
	in, err := os.Open(s.eventsPath)
	if err != nil {
		return 0, err
	}
	tmp := s.eventsPath + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		_ = in.Close()
		return 0, err
	}

	var removed int64
	w := bufio.NewWriter(out)
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		var e StoredEvent
		if err := json.Unmarshal(sc.Bytes(), &e); err == nil && e.ReceivedAt.Before(t) {
			removed++
			continue
		}
		_, _ = w.Write(sc.Bytes())
		_ = w.WriteByte('\n')
	}
	scanErr := sc.Err()
	_ = in.Close()
	if err := w.Flush(); err != nil {
		_ = out.Close()
		return 0, err
	}
	if err := out.Close(); err != nil {
		return 0, err
	}
	if scanErr != nil {
		_ = os.Remove(tmp)
		return 0, scanErr
	}

	_ = s.eventsFile.Close()
	renameErr := renameFile(tmp, s.eventsPath)
	if renameErr != nil {
		_ = os.Remove(tmp)
		removed = 0
	}
	f, err := os.OpenFile(s.eventsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		s.eventsFile = nil
		return removed, errors.Join(renameErr, err)
	}
	s.eventsFile = f
	return removed, renameErr
}
