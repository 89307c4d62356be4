package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"charsheet/internal/core"
	"charsheet/internal/editor"
)

const (
	discardWarning = "Unsaved changes will be discarded. Type save, or quit again to leave without saving."
	usageHint      = "  (type help for every command)"
)

func newEditCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a character interactively with autosave",
		Long:  "Opens the interactive editor. Type commands at the prompt.\n\n" + editor.Help,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(cmd, flags, args[0])
		},
	}
}

func runEdit(cmd *cobra.Command, flags *globalFlags, id string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	notes := make(chan core.Notification, 128)
	a, err := openApp(ctx, flags, appOptions{interactive: true, notifier: func(l *zap.Logger) core.Notifier {
		return channelNotifier(notes, l)
	}})
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := open(ctx, a, id)
	if err != nil {
		return err
	}
	defer sess.Close()

	if flags.metricsAddr != "" {
		stop := serveMetrics(a, flags.metricsAddr)
		defer stop()
	}

	model := newEditModel(ctx, editor.New(sess), notes)
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("editor: %w", err)
	}
	if sess.Dirty() {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: unsaved changes discarded")
	}
	return nil
}

// channelNotifier forwards notifications to the UI. Sends never block the
// session; notifications beyond the buffer are dropped and logged.
func channelNotifier(ch chan<- core.Notification, logger *zap.Logger) core.Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return core.NotifierFunc(func(n core.Notification) {
		select {
		case ch <- n:
		default:
			logger.Warn("notification dropped",
				zap.String("character_id", n.CharacterID),
				zap.String("level", string(n.Level)),
				zap.String("message", n.Message),
			)
		}
	})
}

func serveMetrics(a *app, addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

type editStyles struct {
	header lipgloss.Style
	muted  lipgloss.Style
	echo   lipgloss.Style
	info   lipgloss.Style
	warn   lipgloss.Style
	err    lipgloss.Style
	input  lipgloss.Style
}

func defaultEditStyles() editStyles {
	return editStyles{
		header: lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),
		muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		echo:   lipgloss.NewStyle().Foreground(lipgloss.Color("63")),
		info:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		warn:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		err:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1),
	}
}

type (
	notificationMsg core.Notification
	replyMsg        struct {
		reply editor.Reply
		err   error
	}
)

// editModel is the bubbletea model of the interactive editor.
type editModel struct {
	ctx      context.Context
	ed       *editor.Editor
	notes    <-chan core.Notification
	input    textinput.Model
	viewport viewport.Model
	renderer *glamour.TermRenderer
	styles   editStyles

	history     []string
	busy        bool
	confirmQuit bool
}

func newEditModel(ctx context.Context, ed *editor.Editor, notes <-chan core.Notification) editModel {
	ti := textinput.New()
	ti.Placeholder = "Type a command (help for the list, Enter to run, Esc to quit)"
	ti.Focus()
	ti.Prompt = "> "
	ti.CharLimit = 4096
	ti.Width = 80

	vp := viewport.New(80, 20)
	renderer, _ := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))

	m := editModel{
		ctx:      ctx,
		ed:       ed,
		notes:    notes,
		input:    ti,
		viewport: vp,
		renderer: renderer,
		styles:   defaultEditStyles(),
	}
	if reply, err := ed.Execute(ctx, "show"); err == nil {
		m.history = append(m.history, m.markdown(reply.Markdown))
	}
	m.history = append(m.history, m.styles.muted.Render("Type help for the command list."))
	m.viewport.SetContent(strings.Join(m.history, "\n"))
	m.viewport.GotoBottom()
	return m
}

func (m editModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForNotification(m.notes))
}

func waitForNotification(ch <-chan core.Notification) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return notificationMsg(n)
	}
}

func (m editModel) execute(line string) tea.Cmd {
	return func() tea.Msg {
		reply, err := m.ed.Execute(m.ctx, line)
		return replyMsg{reply: reply, err: err}
	}
}

func (m editModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m.requestQuit()
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if line == "" {
				return m, nil
			}
			m.busy = true
			m.append(m.styles.echo.Render("> " + line))
			return m, m.execute(line)
		}

	case tea.WindowSizeMsg:
		headerHeight, footerHeight := 2, 4
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-headerHeight-footerHeight, 3)
		m.input.Width = max(msg.Width-6, 10)

	case replyMsg:
		m.busy = false
		if msg.err != nil {
			m.confirmQuit = false
			if editor.IsUsage(msg.err) {
				m.append(m.styles.warn.Render(msg.err.Error()) + m.styles.muted.Render(usageHint))
				return m, nil
			}
			m.append(m.styles.err.Render(msg.err.Error()))
			return m, nil
		}
		if msg.reply.Quit {
			return m.requestQuit()
		}
		m.confirmQuit = false
		if msg.reply.Message != "" {
			m.append(msg.reply.Message)
		}
		if msg.reply.Markdown != "" {
			m.append(m.markdown(msg.reply.Markdown))
		}
		return m, nil

	case notificationMsg:
		m.notify(core.Notification(msg))
		return m, waitForNotification(m.notes)
	}

	m.input, tiCmd = m.input.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

// requestQuit asks for confirmation once when the session has unsaved edits.
func (m editModel) requestQuit() (tea.Model, tea.Cmd) {
	if m.ed.Session().Dirty() && !m.confirmQuit {
		m.confirmQuit = true
		m.append(m.styles.warn.Render(discardWarning))
		return m, nil
	}
	return m, tea.Quit
}

func (m *editModel) append(line string) {
	m.history = append(m.history, line)
	m.viewport.SetContent(strings.Join(m.history, "\n"))
	m.viewport.GotoBottom()
}

// notify shows a session notification. Rejected edits are skipped: every
// edit comes from this editor, so the rejection is already shown as the
// command's reply.
func (m *editModel) notify(n core.Notification) {
	switch {
	case n.Err != nil && n.Message == n.Err.Error():
	case n.Err != nil:
		m.append(m.styles.err.Render(n.Message + ": " + n.Err.Error()))
	case n.Level == core.NotifyWarning:
		m.append(m.styles.warn.Render(n.Message))
	case n.Level == core.NotifyError:
		m.append(m.styles.err.Render(n.Message))
	default:
		m.append(m.styles.info.Render(n.Message))
	}
}

func (m editModel) markdown(md string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = md
		}
	}()
	if m.renderer == nil {
		return md
	}
	rendered, err := m.renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(rendered, "\n")
}

func (m editModel) View() string {
	sess := m.ed.Session()
	c, _ := sess.Snapshot()
	status := "saved"
	if sess.Dirty() {
		status = "unsaved"
	}
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		m.styles.header.Render(" "+c.Name+" "),
		m.styles.muted.Render(fmt.Sprintf("  backpack %s  autosave %s  %s", sess.Occupancy(), sess.State(), status)),
	)
	footer := m.styles.muted.Render("Enter: run • help: commands • save: save now • Esc/Ctrl+C: quit")
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		m.styles.input.Render(m.input.View()),
		footer,
	)
}
