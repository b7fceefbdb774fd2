package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"showrunner/internal/api"
	"showrunner/internal/artifacts"
	"showrunner/internal/config"
	"showrunner/internal/jobstore"
	"showrunner/internal/logging"
	"showrunner/internal/notifications"
	"showrunner/internal/pipeline"
	"showrunner/internal/session"
	"showrunner/internal/stage"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Interactive dashboard that follows jobs as they generate",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !isTTY() {
				return errors.New("watch requires an interactive terminal (TTY)")
			}
			return runWatch(cmd.Context(), cfg)
		},
	}
}

func isTTY() bool {
	return shouldColorize(os.Stdout)
}

func runWatch(ctx context.Context, cfg *config.Config) error {
	client, err := pipeline.New(cfg.API.BaseURL, cfg.API.Token, pipeline.WithTimeout(cfg.APITimeout()))
	if err != nil {
		return err
	}

	// The TUI owns the terminal, so session logs go to a file in the spool
	// directory instead of stderr.
	logger := logging.NewNop()
	logFile, err := os.OpenFile(filepath.Join(cfg.Artifacts.SpoolDir, "watch.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err == nil {
		defer logFile.Close()
		if fileLogger, err := logging.New(logging.Options{
			Level:  cfg.Logging.Level,
			Format: "json",
			Output: logFile,
		}); err == nil {
			logger = fileLogger
		}
	}

	resolver, err := artifacts.NewResolver(client, cfg.Artifacts.SpoolDir, logger)
	if err != nil {
		return err
	}

	sess, err := session.New(session.Options{
		Client:       client,
		Store:        jobstore.New(),
		Artifacts:    resolver,
		Notifier:     notifications.NewService(cfg.Notifications.NtfyEndpoint, cfg.NotifyTimeout()),
		Logger:       logger,
		PollInterval: cfg.PollInterval(),
		PollDisabled: cfg.Dashboard.PollDisabled,
		VideoEnabled: cfg.Dashboard.VideoEnabled,
		ListLimit:    cfg.Dashboard.ListLimit,
		AutoResolve:  true,
	})
	if err != nil {
		resolver.Close()
		return err
	}
	defer sess.Close()

	m := watchModel{
		ctx:     ctx,
		session: sess,
		cfg:     cfg,
	}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	finalModel, err := p.Run()
	if err != nil {
		return err
	}
	if fm, ok := finalModel.(watchModel); ok {
		return fm.fatalErr
	}
	return nil
}

var (
	watchTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	watchMutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	watchErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	watchOKStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	watchPanelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	watchSelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
	watchActiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	watchDoneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	watchFailStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

type watchMode int

const (
	watchModeBrowse watchMode = iota
	watchModeCreate
)

type watchModel struct {
	ctx     context.Context
	session *session.Session
	cfg     *config.Config

	cursor int
	width  int
	height int
	mode   watchMode
	input  textinput.Model

	statusMessage string
	statusIsError bool
	fatalErr      error
}

type sessionEventMsg struct {
	event session.Event
	ok    bool
}

type actionDoneMsg struct {
	label string
	err   error
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.initialLoadCmd(), m.waitForEventCmd())
}

func (m watchModel) initialLoadCmd() tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{label: "refresh", err: m.session.RefreshList(m.ctx)}
	}
}

func (m watchModel) waitForEventCmd() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.session.Events()
		return sessionEventMsg{event: event, ok: ok}
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case sessionEventMsg:
		if !msg.ok {
			return m, tea.Quit
		}
		switch msg.event.Kind {
		case session.EventInfo:
			m.statusMessage = msg.event.Text
			m.statusIsError = false
		case session.EventError:
			m.statusMessage = msg.event.Text
			m.statusIsError = true
		}
		m.clampCursor()
		return m, m.waitForEventCmd()

	case actionDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, session.ErrActionInFlight) {
			m.statusMessage = msg.err.Error()
			m.statusIsError = true
		}
		m.clampCursor()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	if m.mode == watchModeCreate {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *watchModel) clampCursor() {
	total := m.session.Store().Len()
	if total == 0 {
		m.cursor = 0
	} else if m.cursor > total-1 {
		m.cursor = total - 1
	}
}

func (m watchModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode == watchModeCreate {
		return m.handleCreateKey(msg)
	}
	switch msg.String() {
	case "n":
		input := textinput.New()
		input.Placeholder = "Topic for the new video"
		input.CharLimit = 255
		input.Width = 60
		input.Focus()
		m.input = input
		m.mode = watchModeCreate
		return m, textinput.Blink
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			return m, m.selectCursorCmd()
		}
	case "down", "j":
		if m.cursor < m.session.Store().Len()-1 {
			m.cursor++
			return m, m.selectCursorCmd()
		}
	case "r":
		return m, m.actionCmd("refresh", func() error {
			return m.session.RefreshList(m.ctx)
		})
	case "a":
		job, ok := m.session.Store().Selected()
		if !ok {
			return m, nil
		}
		return m, m.actionCmd("audio", func() error {
			return m.session.RequestAudio(m.ctx, job.ID, "")
		})
	case "v":
		job, ok := m.session.Store().Selected()
		if !ok {
			return m, nil
		}
		return m, m.actionCmd("video", func() error {
			return m.session.RequestVideo(m.ctx, job.ID)
		})
	case "R":
		job, ok := m.session.Store().Selected()
		if !ok {
			return m, nil
		}
		return m, m.actionCmd("rerender", func() error {
			return m.session.Rerender(m.ctx, job.ID)
		})
	}
	return m, nil
}

func (m watchModel) handleCreateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = watchModeBrowse
		return m, nil
	case "enter":
		topic := strings.TrimSpace(m.input.Value())
		if topic == "" {
			return m, nil
		}
		m.mode = watchModeBrowse
		return m, m.actionCmd("create", func() error {
			return m.session.CreateJob(m.ctx, api.CreateJobRequest{
				Topic:  topic,
				Style:  "informative",
				Length: 300,
			})
		})
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m watchModel) selectCursorCmd() tea.Cmd {
	jobs := m.session.Store().Jobs()
	if m.cursor < 0 || m.cursor >= len(jobs) {
		return nil
	}
	jobID := jobs[m.cursor].ID
	return func() tea.Msg {
		m.session.Select(m.ctx, jobID)
		return actionDoneMsg{label: "select"}
	}
}

func (m watchModel) actionCmd(label string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{label: label, err: fn()}
	}
}

func (m watchModel) View() string {
	var b strings.Builder

	b.WriteString(watchTitleStyle.Render("Showrunner"))
	b.WriteString(watchMutedStyle.Render("  up/down select · n new · a audio · v video · R rerender · r refresh · q quit"))
	b.WriteString("\n\n")

	if m.mode == watchModeCreate {
		b.WriteString(watchPanelStyle.Render("New job topic:\n" + m.input.View()))
		b.WriteString("\n")
		b.WriteString(watchMutedStyle.Render("enter to submit · esc to cancel"))
		b.WriteString("\n\n")
	}

	jobs := m.session.Store().Jobs()
	selectedID := m.session.Store().SelectedID()

	if len(jobs) == 0 {
		b.WriteString(watchMutedStyle.Render("No jobs yet"))
		b.WriteString("\n")
	}
	for i, job := range jobs {
		line := fmt.Sprintf("%s  %-40s %s", shortID(job.ID), truncate(job.Topic, 40), humanizeStatus(job.Status))
		switch {
		case i == m.cursor:
			line = watchSelStyle.Render(line)
		case job.ID == selectedID:
			line = watchActiveStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if job, ok := m.session.Store().Selected(); ok {
		b.WriteString(watchPanelStyle.Render(m.renderDetail(job)))
		b.WriteString("\n")
	}

	if m.statusMessage != "" {
		style := watchOKStyle
		if m.statusIsError {
			style = watchErrorStyle
		}
		b.WriteString(style.Render(m.statusMessage))
		b.WriteString("\n")
	}

	return b.String()
}

func (m watchModel) renderDetail(job api.Job) string {
	lines := []string{
		watchTitleStyle.Render(truncate(job.Topic, 60)),
		fmt.Sprintf("Overall  %s", m.styleStatus(job.Status)),
		fmt.Sprintf("Script   %s%s", m.styleStatus(job.ScriptStatus), actionHint(stage.CanRequestAudio(job), "press a for audio")),
		fmt.Sprintf("Audio    %s%s", m.styleStatus(job.AudioStatus), actionHint(stage.CanRequestVideo(job, m.session.VideoEnabled()), "press v for video")),
		fmt.Sprintf("Video    %s", m.styleStatus(job.VideoStatus)),
	}
	for _, artifact := range []api.ArtifactType{api.ArtifactAudio, api.ArtifactVideo} {
		if handle, ok := m.session.Artifacts().Handle(job.ID, artifact); ok {
			lines = append(lines, watchMutedStyle.Render(fmt.Sprintf("%s: %s", artifact, handle.Path)))
		}
	}
	for _, inflight := range []session.Action{session.ActionAudio, session.ActionVideo, session.ActionSave, session.ActionRerender} {
		if m.session.InFlight(inflight) {
			lines = append(lines, watchMutedStyle.Render(fmt.Sprintf("%s in progress...", inflight)))
		}
	}
	return strings.Join(lines, "\n")
}

func (m watchModel) styleStatus(status api.JobStatus) string {
	label := humanizeStatus(status)
	switch status {
	case api.StatusCompleted:
		return watchDoneStyle.Render(label)
	case api.StatusFailed:
		return watchFailStyle.Render(label)
	case api.StatusQueued, api.StatusProcessing, api.StatusRerendering:
		return watchActiveStyle.Render(label)
	default:
		return watchMutedStyle.Render(label)
	}
}

func actionHint(available bool, hint string) string {
	if !available {
		return ""
	}
	return watchMutedStyle.Render("  (" + hint + ")")
}
