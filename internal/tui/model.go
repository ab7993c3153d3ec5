package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"memchat/internal/domain"
	"memchat/internal/service"
	"memchat/internal/textutil"
)

// Backend is the TUI-facing subset of the chat and memory services.
type Backend interface {
	Turn(ctx context.Context, chatID int64, text string) (service.TurnResult, error)
	ListChats(ctx context.Context) ([]domain.Chat, error)
	CreateChat(ctx context.Context, name string) (domain.Chat, error)
	SelectChat(ctx context.Context, name string) (int64, error)
	IngestDocument(ctx context.Context, path string) (domain.IngestionResult, error)
	RetrieveContext(ctx context.Context, query string, k int) ([]domain.Retrieved, error)
	ResumePending(ctx context.Context) (domain.IngestionResult, error)
	Verify(ctx context.Context) (service.VerifyReport, error)
	Stats(ctx context.Context) (service.Stats, error)
}

// Options configure a Model.
type Options struct {
	ChatID    int64
	ChatName  string
	Banner    string
	SearchK   int
	OpTimeout time.Duration
}

// Model is the Bubble Tea model of the chat session. While a command is in
// flight further input is refused, so turns never overlap.
type Model struct {
	backend  Backend
	opts     Options
	input    textinput.Model
	viewport viewport.Model
	lines    []string
	status   string
	busy     bool
	ready    bool
}

// New creates a new TUI model instance.
func New(backend Backend, opts Options) Model {
	if opts.SearchK <= 0 {
		opts.SearchK = 5
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 5 * time.Minute
	}
	ti := textinput.New()
	ti.Prompt = "You: "
	ti.Placeholder = "Type a message or /help and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	m := Model{backend: backend, opts: opts, input: ti, viewport: viewport.New(0, 0)}
	if opts.ChatID == 0 {
		m.status = "No chat selected. Use /new <name> or /chat <name>."
	} else {
		m.status = fmt.Sprintf("Chat %q. Type to talk, /help for commands.", opts.ChatName)
	}
	return m
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

type turnDoneMsg struct {
	user string
	res  service.TurnResult
	err  error
}

type chatSelectedMsg struct {
	id   int64
	name string
	err  error
}

type outputMsg struct {
	title string
	text  string
	err   error
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := transcriptStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 + bh // header, status, input box, spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.refresh()
		return m, nil

	case turnDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.refresh()
			return m, nil
		}
		m.appendTurn(msg.user, msg.res)
		m.status = turnStatus(msg.res)
		m.refresh()
		return m, nil

	case chatSelectedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.opts.ChatID, m.opts.ChatName = msg.id, msg.name
		m.lines = append(m.lines, systemStyle.Render(fmt.Sprintf("-- chat %q --", msg.name)))
		m.status = fmt.Sprintf("Switched to chat %q.", msg.name)
		m.refresh()
		return m, nil

	case outputMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.lines = append(m.lines, systemStyle.Render(msg.title), msg.text)
		m.status = msg.title
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			return m.submit()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return m, nil
	}
	if m.busy {
		m.status = "Still working on the previous request..."
		return m, nil
	}
	m.input.SetValue("")

	if c, ok := parseCommand(line); ok {
		return m.runCommand(c)
	}
	if m.opts.ChatID == 0 {
		m.status = "No chat selected. Use /new <name> or /chat <name>."
		return m, nil
	}
	m.busy = true
	m.status = "Thinking..."
	chatID, backend, timeout := m.opts.ChatID, m.backend, m.opts.OpTimeout
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		res, err := backend.Turn(ctx, chatID, line)
		return turnDoneMsg{user: line, res: res, err: err}
	}
}

func (m Model) runCommand(c command) (tea.Model, tea.Cmd) {
	switch c.name {
	case "exit", "quit":
		return m, tea.Quit
	case "help":
		m.lines = append(m.lines, helpText)
		m.refresh()
		return m, nil
	case "new", "chat", "ingest", "search":
		if c.arg == "" {
			m.status = fmt.Sprintf("Usage: /%s <argument>", c.name)
			return m, nil
		}
	case "chats", "resume", "reembed", "verify", "stats":
	default:
		m.status = fmt.Sprintf("Unknown command /%s. Try /help.", c.name)
		return m, nil
	}

	m.busy = true
	m.status = "Working..."
	backend, opts := m.backend, m.opts
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opts.OpTimeout)
		defer cancel()
		return execute(ctx, backend, opts, c)
	}
}

func execute(ctx context.Context, b Backend, opts Options, c command) tea.Msg {
	switch c.name {
	case "new":
		chat, err := b.CreateChat(ctx, c.arg)
		return chatSelectedMsg{id: chat.ID, name: chat.Name, err: err}
	case "chat":
		id, err := b.SelectChat(ctx, c.arg)
		return chatSelectedMsg{id: id, name: c.arg, err: err}
	case "chats":
		chats, err := b.ListChats(ctx)
		if err != nil {
			return outputMsg{err: err}
		}
		var sb strings.Builder
		for _, ch := range chats {
			marker := " "
			if ch.ID == opts.ChatID {
				marker = "*"
			}
			fmt.Fprintf(&sb, "%s %d: %s\n", marker, ch.ID, ch.Name)
		}
		return outputMsg{title: fmt.Sprintf("%d chats", len(chats)), text: strings.TrimRight(sb.String(), "\n")}
	case "ingest":
		res, err := b.IngestDocument(ctx, c.arg)
		if err != nil {
			return outputMsg{err: err}
		}
		return outputMsg{title: ingestStatus(res), text: res.Summary}
	case "search":
		hits, err := b.RetrieveContext(ctx, c.arg, opts.SearchK)
		if err != nil {
			return outputMsg{err: err}
		}
		return outputMsg{title: fmt.Sprintf("%d results for %q", len(hits), c.arg), text: renderHits(hits, c.arg)}
	case "resume", "reembed":
		res, err := b.ResumePending(ctx)
		if err != nil {
			return outputMsg{err: err}
		}
		return outputMsg{title: fmt.Sprintf("Re-embedded %d of %d pending texts", len(res.Succeeded), res.Chunks)}
	case "verify":
		rep, err := b.Verify(ctx)
		if err != nil {
			return outputMsg{err: err}
		}
		title := fmt.Sprintf("Verify: %d indexed, %d mapped, %d persisted, %d skipped, %d cross-checked",
			rep.Indexed, rep.Mapped, rep.Persisted, rep.Skipped, rep.CrossChecked)
		if rep.OK() {
			return outputMsg{title: title + ": OK"}
		}
		return outputMsg{title: title + ": PROBLEMS", text: strings.Join(rep.Problems, "\n")}
	case "stats":
		st, err := b.Stats(ctx)
		if err != nil {
			return outputMsg{err: err}
		}
		return outputMsg{title: fmt.Sprintf("%d chats, %d messages, %d documents, %d embeddings, %d indexed",
			st.Chats, st.Messages, st.Documents, st.Embeddings, st.Indexed)}
	}
	return outputMsg{err: fmt.Errorf("unknown command /%s", c.name)}
}

func (m *Model) appendTurn(user string, res service.TurnResult) {
	m.lines = append(m.lines, userStyle.Render("You: ")+user)
	if len(res.Context) > 0 {
		best := res.Context[0]
		m.lines = append(m.lines, systemStyle.Render(fmt.Sprintf("recalled (%.3f) %s: ", best.Distance, best.Path))+
			highlightBestSentence(best.Text, user))
	}
	m.lines = append(m.lines, agentStyle.Render("AI: ")+res.Reply)
}

func turnStatus(res service.TurnResult) string {
	switch {
	case res.ContextErr != nil:
		return "Answered without memories: " + res.ContextErr.Error()
	case res.Record.User.Partial() || res.Record.Agent.Partial():
		return "Turn saved, but not all of it could be embedded. Use /resume later."
	default:
		return fmt.Sprintf("Recalled %d memories.", len(res.Context))
	}
}

func ingestStatus(res domain.IngestionResult) string {
	if res.Partial() {
		return fmt.Sprintf("Ingested %s: %d chunks, %d embedded, chunks %v failed (use /resume)",
			res.Path, res.Chunks, len(res.Succeeded), res.Failed)
	}
	return fmt.Sprintf("Ingested %s: %d chunks", res.Path, res.Chunks)
}

func renderHits(hits []domain.Retrieved, query string) string {
	if len(hits) == 0 {
		return "No results."
	}
	var sb strings.Builder
	for i, h := range hits {
		fmt.Fprintf(&sb, "%d. [%.3f] %s\n   %s\n", i+1, h.Distance, h.Path, highlightBestSentence(h.Text, query))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m *Model) refresh() {
	m.viewport.SetContent(lipgloss.NewStyle().Width(m.viewport.Width).Render(strings.Join(m.lines, "\n")))
	m.viewport.GotoBottom()
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("memchat")
	if m.opts.ChatName != "" {
		header += " " + systemStyle.Render("· "+m.opts.ChatName)
	}
	if m.opts.Banner != "" {
		header += " " + systemStyle.Render(m.opts.Banner)
	}
	status := statusStyle.Render(m.status)
	return header + "\n" + transcriptStyle.Render(m.viewport.View()) + "\n" + inputStyle.Render(m.input.View()) + "\n" + status
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	systemStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	agentStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	highlightStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	sentenceRe      = regexp.MustCompile(`[^.!?]+[.!?]*`)
)

// highlightBestSentence emphasises the sentence sharing the most words with
// the query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	q := toTermSet(query)
	if len(q) == 0 {
		return strings.Join(trimAll(sentences), " ")
	}
	best, bestScore := 0, -1
	for i, s := range sentences {
		if score := overlap(q, s); score > bestScore {
			best, bestScore = i, score
		}
	}
	out := trimAll(sentences)
	out[best] = highlightStyle.Render(out[best])
	return strings.Join(out, " ")
}

func trimAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

func toTermSet(s string) map[string]struct{} {
	terms := textutil.Terms(s)
	m := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		m[t] = struct{}{}
	}
	return m
}

func overlap(q map[string]struct{}, sentence string) int {
	score := 0
	for t := range toTermSet(sentence) {
		if _, ok := q[t]; ok {
			score++
		}
	}
	return score
}
