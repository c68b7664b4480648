// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/sessionscope/internal/api"
	"github.com/jeranaias/sessionscope/internal/model"
	"github.com/jeranaias/sessionscope/internal/sse"
	"github.com/jeranaias/sessionscope/internal/ui/components"
	"github.com/jeranaias/sessionscope/internal/ui/styles"
)

const (
	// DefaultRedrawInterval caps re-renders at roughly 20 per second.
	DefaultRedrawInterval = 50 * time.Millisecond

	seekStep = 10
	minSpeed = 0.25
	maxSpeed = 16
)

// Replayer is the part of *api.Client that drives a replay.
type Replayer interface {
	GetReplayStatus(ctx context.Context, id string) (*model.ReplayStatus, error)
	PauseReplay(ctx context.Context, id string) (*model.ReplayStatus, error)
	ResumeReplay(ctx context.Context, id string) (*model.ReplayStatus, error)
	SeekReplay(ctx context.Context, id string, position int) (*model.ReplayStatus, error)
	SetReplaySpeed(ctx context.Context, id string, speed float64) (*model.ReplayStatus, error)
}

var _ Replayer = (*api.Client)(nil)

// Options configures the watch view.
type Options struct {
	Title string
	// HistoryID and Replayer are set when following a replay.
	HistoryID string
	Replayer  Replayer
	// Stream runs the event stream until it ends or ctx is canceled.
	Stream         func(ctx context.Context, handler api.EventHandler) (sse.Stats, error)
	Theme          *styles.Theme
	Markdown       bool
	RedrawInterval time.Duration
	// Clipboard defaults to the system clipboard.
	Clipboard func(string) error
}

// =============================================================================
// MESSAGES
// =============================================================================

type redrawMsg struct{}

type replayResultMsg struct {
	status *model.ReplayStatus
	action string
	err    error
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model of the watch view.
type Model struct {
	ctx    context.Context
	opts   Options
	keys   KeyMap
	theme  *styles.Theme
	buffer *eventBuffer

	viewport viewport.Model
	spinner  spinner.Model
	width    int
	height   int
	ready    bool

	events     []model.SessionEvent
	transcript *transcript
	replay     model.ReplayStatus

	showEvents bool
	selected   int
	follow     bool
	dirty      bool

	ended   bool
	endErr  error
	skipped int
	notice  string
}

// New creates the watch model. The caller feeds events through the buffer
// returned by Run, or through Push in tests.
func New(ctx context.Context, opts Options) Model {
	if opts.RedrawInterval <= 0 {
		opts.RedrawInterval = DefaultRedrawInterval
	}
	if opts.Clipboard == nil {
		opts.Clipboard = clipboard.WriteAll
	}
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme(styles.Options{Color: styles.ColorAuto})
	}

	sp := spinner.New()
	sp.Spinner = styles.LineSpinner.Bubble()
	sp.Style = opts.Theme.InfoStyle

	return Model{
		ctx:        ctx,
		opts:       opts,
		keys:       DefaultKeyMap(),
		theme:      opts.Theme,
		buffer:     &eventBuffer{},
		viewport:   viewport.New(components.DefaultWidth, 20),
		spinner:    sp,
		width:      components.DefaultWidth,
		height:     24,
		transcript: newTranscript(),
		follow:     true,
		selected:   -1,
		replay:     model.ReplayStatus{SessionID: opts.HistoryID},
	}
}

// Push hands an event to the model as the stream goroutine would.
func (m Model) Push(ev model.SessionEvent) {
	m.buffer.push(ev)
}

func (m Model) isReplay() bool {
	return m.opts.Replayer != nil && m.opts.HistoryID != ""
}

// Init starts the spinner and the redraw ticker.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.redrawTick()}
	if m.isReplay() {
		cmds = append(cmds, m.replayCmd("status", func(ctx context.Context) (*model.ReplayStatus, error) {
			return m.opts.Replayer.GetReplayStatus(ctx, m.opts.HistoryID)
		}))
	}
	return tea.Batch(cmds...)
}

func (m Model) redrawTick() tea.Cmd {
	return tea.Tick(m.opts.RedrawInterval, func(time.Time) tea.Msg { return redrawMsg{} })
}

// Update handles key presses, ticks and replay control results.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.viewport.Width = msg.Width
		m.viewport.Height = max(1, msg.Height-2)
		m.ready = true
		m.dirty = true
		m.refresh()
		return m, nil

	case redrawMsg:
		m.flush()
		if m.dirty {
			m.refresh()
		}
		return m, m.redrawTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case replayResultMsg:
		if msg.err != nil {
			m.notice = msg.action + " failed: " + msg.err.Error()
			return m, nil
		}
		if msg.status != nil {
			m.replay = *msg.status
			if msg.action == "seek" {
				m.truncateTo(msg.status.Position)
			}
		}
		m.notice = ""
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.ToggleView):
		m.showEvents = !m.showEvents
		m.dirty = true
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Follow):
		m.follow = !m.follow
		if m.follow {
			m.viewport.GotoBottom()
		}
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		m.copySelection()
		return m, nil

	case m.showEvents && key.Matches(msg, m.keys.Up):
		m.moveSelection(-1)
		return m, nil

	case m.showEvents && key.Matches(msg, m.keys.Down):
		m.moveSelection(1)
		return m, nil
	}

	if m.isReplay() {
		if cmd, ok := m.replayKey(msg); ok {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	if !m.viewport.AtBottom() {
		m.follow = false
	}
	return m, cmd
}

// =============================================================================
// REPLAY CONTROL
// =============================================================================

func (m Model) replayKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	id := m.opts.HistoryID
	r := m.opts.Replayer

	switch {
	case key.Matches(msg, m.keys.PlayPause):
		if m.replay.State == model.ReplayPaused {
			return m.replayCmd("resume", func(ctx context.Context) (*model.ReplayStatus, error) {
				return r.ResumeReplay(ctx, id)
			}), true
		}
		return m.replayCmd("pause", func(ctx context.Context) (*model.ReplayStatus, error) {
			return r.PauseReplay(ctx, id)
		}), true

	case key.Matches(msg, m.keys.SeekBack), key.Matches(msg, m.keys.SeekFwd), key.Matches(msg, m.keys.Restart):
		pos := 0
		switch {
		case key.Matches(msg, m.keys.SeekBack):
			pos = max(0, m.replay.Position-seekStep)
		case key.Matches(msg, m.keys.SeekFwd):
			pos = m.replay.Position + seekStep
			if m.replay.TotalEvents > 0 {
				pos = min(pos, m.replay.TotalEvents)
			}
		}
		return m.replayCmd("seek", func(ctx context.Context) (*model.ReplayStatus, error) {
			return r.SeekReplay(ctx, id, pos)
		}), true

	case key.Matches(msg, m.keys.Faster), key.Matches(msg, m.keys.Slower):
		speed := m.replay.Speed
		if speed <= 0 {
			speed = 1
		}
		if key.Matches(msg, m.keys.Faster) {
			speed = min(speed*2, maxSpeed)
		} else {
			speed = max(speed/2, minSpeed)
		}
		return m.replayCmd("speed", func(ctx context.Context) (*model.ReplayStatus, error) {
			return r.SetReplaySpeed(ctx, id, speed)
		}), true
	}
	return nil, false
}

func (m Model) replayCmd(action string, call func(ctx context.Context) (*model.ReplayStatus, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		st, err := call(ctx)
		if err != nil {
			log.Debug().Err(err).Str("component", "watch").Str("action", action).Msg("replay control failed")
		}
		return replayResultMsg{status: st, action: action, err: err}
	}
}

// truncateTo drops events past a seek target so the stream can re-deliver
// them from the new position.
func (m *Model) truncateTo(position int) {
	kept := m.events[:0]
	count := 0
	for _, ev := range m.events {
		if ev.Type == model.EventReplay {
			continue
		}
		if count >= position {
			break
		}
		kept = append(kept, ev)
		count++
	}
	m.events = kept
	m.transcript = newTranscript()
	for _, ev := range m.events {
		m.transcript.add(ev)
	}
	if m.selected >= len(m.events) {
		m.selected = len(m.events) - 1
	}
	m.dirty = true
	m.refresh()
}

// =============================================================================
// STATE UPDATES
// =============================================================================

// flush moves buffered events into the model.
func (m *Model) flush() {
	batch := m.buffer.drain()
	for _, ev := range batch.events {
		if r, ok := ev.Replay(); ok {
			m.replay = r
			continue
		}
		m.events = append(m.events, ev)
		if m.transcript.add(ev) || m.showEvents {
			m.dirty = true
		}
	}
	if batch.done && !m.ended {
		m.ended = true
		m.endErr = batch.err
		m.skipped = batch.stats.Skipped
		m.dirty = true
	}
}

func (m *Model) moveSelection(delta int) {
	if len(m.events) == 0 {
		return
	}
	cur := m.selected
	if cur < 0 {
		cur = len(m.events) - 1
	}
	m.selected = min(max(cur+delta, 0), len(m.events)-1)
	m.follow = m.selected == len(m.events)-1
	m.dirty = true
	m.refresh()

	// Keep the selected line on screen.
	if m.selected < m.viewport.YOffset {
		m.viewport.SetYOffset(m.selected)
	} else if m.selected >= m.viewport.YOffset+m.viewport.Height {
		m.viewport.SetYOffset(m.selected - m.viewport.Height + 1)
	}
}

func (m *Model) copySelection() {
	var text string
	if m.showEvents {
		ev, ok := m.selectedEvent()
		if !ok {
			m.notice = "nothing to copy"
			return
		}
		data, err := json.MarshalIndent(ev, "", "  ")
		if err != nil {
			m.notice = "copy failed: " + err.Error()
			return
		}
		text = string(data)
	} else {
		msg, ok := m.transcript.lastMessage()
		if !ok {
			m.notice = "nothing to copy"
			return
		}
		text = msg.Content
	}

	if err := m.opts.Clipboard(text); err != nil {
		m.notice = "copy failed: " + err.Error()
		return
	}
	m.notice = fmt.Sprintf("copied %d bytes", len(text))
}

func (m Model) selectedEvent() (model.SessionEvent, bool) {
	if len(m.events) == 0 {
		return model.SessionEvent{}, false
	}
	i := m.selected
	if i < 0 || i >= len(m.events) {
		i = len(m.events) - 1
	}
	return m.events[i], true
}

// refresh rebuilds the viewport content when something changed.
func (m *Model) refresh() {
	if !m.dirty {
		return
	}
	m.dirty = false
	if m.showEvents {
		m.viewport.SetContent(m.renderEventLog())
	} else {
		m.viewport.SetContent(m.renderConversation())
	}
	if m.follow {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// VIEW
// =============================================================================

func (m *Model) renderConversation() string {
	if len(m.transcript.entries) == 0 {
		return m.theme.Muted.Render("Waiting for events...")
	}
	blocks := make([]string, 0, len(m.transcript.entries))
	for _, e := range m.transcript.entries {
		if e.msg != nil {
			blocks = append(blocks, components.RenderMessage(m.theme, *e.msg, components.MessageOptions{
				Width:    m.width,
				Markdown: m.opts.Markdown,
				ShowMeta: true,
			}))
			continue
		}
		style := m.theme.ToolCall
		if e.kind == model.EventError {
			style = m.theme.ErrorStyle
		} else if e.kind == model.EventStatus {
			style = m.theme.Muted
		}
		blocks = append(blocks, style.Render("  "+e.note))
	}
	return strings.Join(blocks, "\n\n")
}

func (m *Model) renderEventLog() string {
	if len(m.events) == 0 {
		return m.theme.Muted.Render("Waiting for events...")
	}
	lines := make([]string, len(m.events))
	selected := m.selected
	if selected < 0 {
		selected = len(m.events) - 1
	}
	for i, ev := range m.events {
		line := components.RenderEvent(m.theme, ev, components.EventOptions{Width: m.width - 2})
		if i == selected {
			lines[i] = m.theme.Selected.Render("> ") + line
		} else {
			lines[i] = "  " + line
		}
	}
	return strings.Join(lines, "\n")
}

// View renders the header, the scrolling body and the status bar.
func (m Model) View() string {
	header := m.theme.Title.Render(m.opts.Title)
	if m.isReplay() {
		header += "  " + components.ReplayBar(m.theme, m.replay, m.width-len(m.opts.Title)-2)
	}

	return header + "\n" + m.viewport.View() + "\n" +
		components.StatusBar(m.theme, m.width, m.statusText(), m.keys.shortcuts(m.isReplay()))
}

func (m Model) statusText() string {
	if m.notice != "" {
		return m.notice
	}
	var parts []string
	switch {
	case m.ended && m.endErr != nil:
		parts = append(parts, "stream failed: "+m.endErr.Error())
	case m.ended:
		parts = append(parts, "stream ended")
	case m.replay.State == model.ReplayPaused:
		parts = append(parts, "paused")
	default:
		parts = append(parts, m.spinner.View()+" live")
	}
	parts = append(parts, fmt.Sprintf("%d events", len(m.events)))
	if m.skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", m.skipped))
	}
	if !m.follow {
		parts = append(parts, "scroll locked")
	}
	return strings.Join(parts, " | ")
}
