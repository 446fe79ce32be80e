// Package router dispatches Telegram slash commands to handlers on a
// bounded worker pool with access control and per-command middleware.
package router

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"runtime/debug"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	rtsup "stalwartbot/internal/runtime/supervisor"
	"stalwartbot/internal/transport"
	logx "stalwartbot/pkg/logx"
)

const (
	defaultWorkers = 2
	jobQueueCap    = 256
	defaultTimeout = 15 * time.Second
)

type Access int

const (
	// AccessAllowed requires the sender to be in the allow list (everyone
	// when the list is empty).
	AccessAllowed Access = iota
	// AccessAdmin requires the sender to be an admin.
	AccessAdmin
	// AccessEveryone skips the allow list.
	AccessEveryone
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Access      Access
	Timeout     time.Duration
	Handle      HandlerFunc
}

type Request struct {
	Msg     transport.Message
	Chat    transport.ChatTarget
	FromID  int64
	Command string
	Args    []string
	ReqID   string
	Logger  logx.Logger
	Sender  transport.Sender
}

// Reply sends an HTML message to the chat the request came from.
func (r *Request) Reply(ctx context.Context, html string) error {
	_, err := r.Sender.SendText(ctx, r.Chat, html, &transport.SendOptions{ParseMode: "HTML", DisablePreview: true})
	return err
}

// Arg returns the i-th argument or "".
func (r *Request) Arg(i int) string {
	if i < 0 || i >= len(r.Args) {
		return ""
	}
	return r.Args[i]
}

// Denied renders the reply for a refused command.
type Denied func(ctx context.Context, req *Request, admin bool) string

type Manager struct {
	mu    sync.RWMutex
	cmds  map[string]*Command
	alias map[string]*Command

	accMu   sync.RWMutex
	allowed []int64
	admins  []int64

	log    logx.Logger
	sender transport.Sender
	denied Denied
	jobs   chan func()
}

func New(log logx.Logger, sender transport.Sender, denied Denied) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{
		cmds:   map[string]*Command{},
		alias:  map[string]*Command{},
		log:    log,
		sender: sender,
		denied: denied,
		jobs:   make(chan func(), jobQueueCap),
	}
}

// SetAccess replaces the allow and admin lists. With no admins configured
// the allowed users are admins.
func (m *Manager) SetAccess(allowed, admins []int64) {
	m.accMu.Lock()
	m.allowed = slices.Clone(allowed)
	m.admins = slices.Clone(admins)
	m.accMu.Unlock()
}

func (m *Manager) isAllowed(id int64) bool {
	m.accMu.RLock()
	defer m.accMu.RUnlock()
	return len(m.allowed) == 0 || slices.Contains(m.allowed, id)
}

// IsAdmin reports whether id may run admin commands.
func (m *Manager) IsAdmin(id int64) bool {
	m.accMu.RLock()
	defer m.accMu.RUnlock()
	if len(m.admins) > 0 {
		return slices.Contains(m.admins, id)
	}
	return len(m.allowed) > 0 && slices.Contains(m.allowed, id)
}

// Register adds commands. Later registrations replace earlier ones with the
// same name.
func (m *Manager) Register(cmds ...Command) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range cmds {
		c := cmds[i]
		name := strings.ToLower(strings.TrimPrefix(c.Name, "/"))
		c.Name = name
		m.cmds[name] = &c
		for _, a := range c.Aliases {
			m.alias[strings.ToLower(a)] = &c
		}
	}
}

// Commands returns the registered commands sorted by name.
func (m *Manager) Commands() []Command {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Command, 0, len(m.cmds))
	for _, c := range m.cmds {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MenuCommands lists commands for the Telegram menu. Admin commands are left out.
func (m *Manager) MenuCommands() []transport.BotCommand {
	var out []transport.BotCommand
	for _, c := range m.Commands() {
		if c.Access == AccessAdmin {
			continue
		}
		out = append(out, transport.BotCommand{Command: c.Name, Description: c.Description})
	}
	return out
}

func (m *Manager) lookup(word string) (*Command, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.cmds[word]; ok {
		return c, true
	}
	c, ok := m.alias[word]
	return c, ok
}

// ParseCommand splits "/cmd@bot a b" into ("cmd", [a b]). ok is false when
// text is not a command.
func ParseCommand(text string) (string, []string, bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	word := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	if word == "" {
		return "", nil, false
	}
	return strings.ToLower(word), fields[1:], true
}

// DispatchLoop routes messages until ctx is done or in is closed.
func (m *Manager) DispatchLoop(ctx context.Context, in <-chan transport.Message) error {
	sup := rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(m.log),
		rtsup.WithCancelOnError(false),
	)
	for i := 0; i < defaultWorkers; i++ {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job := <-m.jobs:
					m.runJob(idx, job)
				}
			}
		},
			rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			rtsup.WithStopOnCleanExit(true),
		)
	}
	m.log.Info("command dispatcher started", logx.Int("workers", defaultWorkers))

	defer func() {
		sup.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-in:
			if !ok {
				return nil
			}
			m.Route(ctx, msg)
		}
	}
}

func (m *Manager) runJob(worker int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic in command job", logx.Int("worker", worker), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	job()
}

// Route handles one message: non-commands are ignored, unknown commands
// get a hint, refused ones a denial.
func (m *Manager) Route(ctx context.Context, msg transport.Message) {
	word, args, ok := ParseCommand(msg.Text)
	if !ok {
		return
	}
	req := &Request{
		Msg:     msg,
		Chat:    transport.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID},
		FromID:  msg.FromID,
		Command: word,
		Args:    args,
		ReqID:   newReqID(),
		Sender:  m.sender,
	}
	req.Logger = m.log.With(
		logx.String("rid", req.ReqID),
		logx.Int64("chat_id", msg.ChatID),
		logx.Int64("from_id", msg.FromID),
		logx.String("cmd", word),
	)

	cmd, found := m.lookup(word)
	if !found {
		if help, ok := m.lookup("help"); ok && m.isAllowed(msg.FromID) {
			cmd = help
		} else {
			return
		}
	}
	switch {
	case cmd.Access != AccessEveryone && !m.isAllowed(msg.FromID):
		m.deny(ctx, req, false)
		return
	case cmd.Access == AccessAdmin && !m.IsAdmin(msg.FromID):
		m.deny(ctx, req, true)
		return
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	final := Chain(cmd.Handle,
		MWPanicRecover(m.log),
		MWRequestLog(m.log),
		MWTimeout(timeout),
	)
	select {
	case m.jobs <- func() { _ = final(ctx, req) }:
	default:
		_ = req.Reply(ctx, "⏳ busy, try again")
	}
}

func (m *Manager) deny(ctx context.Context, req *Request, admin bool) {
	req.Logger.Info("command denied", logx.Bool("admin", admin))
	text := "⛔ Access denied."
	if m.denied != nil {
		text = m.denied(ctx, req, admin)
	}
	if err := req.Reply(ctx, text); err != nil {
		req.Logger.Warn("deny reply failed", logx.Err(err))
	}
}

func newReqID() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(b[:])
}
