package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stalwartbot/internal/transport"
	logx "stalwartbot/pkg/logx"
)

type captureSender struct {
	mu   sync.Mutex
	sent []string
}

func (c *captureSender) SendText(_ context.Context, to transport.ChatTarget, text string, _ *transport.SendOptions) (transport.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return transport.MessageRef{ChatID: to.ChatID, MessageID: len(c.sent)}, nil
}

func (c *captureSender) texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in   string
		word string
		args []string
		ok   bool
	}{
		{"/subscribe auth.failed", "subscribe", []string{"auth.failed"}, true},
		{"/List@StalwartBot", "list", []string{}, true},
		{"  /prefs  ", "prefs", []string{}, true},
		{"hello", "", nil, false},
		{"/", "", nil, false},
		{"", "", nil, false},
	}
	for _, tc := range cases {
		word, args, ok := ParseCommand(tc.in)
		if ok != tc.ok || word != tc.word {
			t.Fatalf("ParseCommand(%q) = %q, %v, %v", tc.in, word, args, ok)
		}
		if ok && len(args) != len(tc.args) {
			t.Fatalf("ParseCommand(%q) args = %v, want %v", tc.in, args, tc.args)
		}
	}
}

func newManager(s transport.Sender) *Manager {
	m := New(logx.Nop(), s, nil)
	m.Register(
		Command{Name: "help", Handle: func(ctx context.Context, r *Request) error { return r.Reply(ctx, "help") }},
		Command{Name: "list", Aliases: []string{"ls"}, Handle: func(ctx context.Context, r *Request) error { return r.Reply(ctx, "list "+r.Arg(0)) }},
		Command{Name: "status", Access: AccessAdmin, Handle: func(ctx context.Context, r *Request) error { return r.Reply(ctx, "status") }},
		Command{Name: "start", Access: AccessEveryone, Handle: func(ctx context.Context, r *Request) error { return r.Reply(ctx, "start") }},
		Command{Name: "boom", Handle: func(context.Context, *Request) error { panic("boom") }},
		Command{Name: "fail", Handle: func(context.Context, *Request) error { return errors.New("nope") }},
	)
	return m
}

func run(t *testing.T, m *Manager, msgs ...transport.Message) {
	t.Helper()
	in := make(chan transport.Message, len(msgs))
	for _, msg := range msgs {
		in <- msg
	}
	close(in)
	require.NoError(t, m.DispatchLoop(context.Background(), in))
}

func TestAccessControl(t *testing.T) {
	s := &captureSender{}
	m := newManager(s)
	m.SetAccess([]int64{1, 2}, []int64{1})

	var got []string
	send := func(from int64, text string) {
		s.mu.Lock()
		s.sent = nil
		s.mu.Unlock()
		m.Route(context.Background(), transport.Message{ChatID: from, FromID: from, Text: text})
		require.Eventually(t, func() bool { return len(s.texts()) > 0 }, time.Second, 5*time.Millisecond)
		got = s.texts()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	in := make(chan transport.Message)
	go func() { _ = m.DispatchLoop(ctx, in) }()

	send(2, "/ls x")
	require.Equal(t, []string{"list x"}, got)

	send(3, "/list")
	require.Contains(t, got[0], "denied")

	send(3, "/start")
	require.Equal(t, []string{"start"}, got)

	send(2, "/status")
	require.Contains(t, got[0], "denied")

	send(1, "/status")
	require.Equal(t, []string{"status"}, got)

	send(2, "/whatever")
	require.Equal(t, []string{"help"}, got)
}

func TestAdminsDefaultToAllowed(t *testing.T) {
	m := New(logx.Nop(), &captureSender{}, nil)
	require.False(t, m.IsAdmin(1), "no lists: nobody is admin")
	m.SetAccess([]int64{1}, nil)
	require.True(t, m.IsAdmin(1))
	require.False(t, m.IsAdmin(2))
}

func TestPanickingHandlerDoesNotStopDispatch(t *testing.T) {
	s := &captureSender{}
	m := newManager(s)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	in := make(chan transport.Message, 4)
	go func() { _ = m.DispatchLoop(ctx, in) }()

	in <- transport.Message{ChatID: 1, FromID: 1, Text: "/boom"}
	in <- transport.Message{ChatID: 1, FromID: 1, Text: "/fail"}
	in <- transport.Message{ChatID: 1, FromID: 1, Text: "/list"}
	require.Eventually(t, func() bool {
		for _, txt := range s.texts() {
			if txt == "list " {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestNonCommandsIgnored(t *testing.T) {
	s := &captureSender{}
	run(t, newManager(s), transport.Message{ChatID: 1, Text: "hello"})
	require.Empty(t, s.texts())
}

func TestMenuCommandsHideAdmin(t *testing.T) {
	m := newManager(&captureSender{})
	for _, c := range m.MenuCommands() {
		if c.Command == "status" {
			t.Fatal("admin command listed in menu")
		}
	}
	require.Len(t, m.Commands(), 6)
}
