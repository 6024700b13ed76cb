package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/allpedroza/karaoke/internal/clock"
	"github.com/allpedroza/karaoke/internal/lane"
	"github.com/allpedroza/karaoke/internal/melody"
	"github.com/allpedroza/karaoke/internal/session"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Constants for UI behavior
const (
	// Lane px represented by one terminal cell
	pxPerRow = 20.0
	pxPerCol = 10.0

	// Height change per key press (px)
	resizeStep = 20.0

	// Seek step for the playback clock (seconds)
	seekStep = 5.0

	// How long status messages stay visible
	statusDuration = 3 * time.Second
)

var (
	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			PaddingLeft(2).
			PaddingRight(2)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CCCCCC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	laneBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333333"))
)

// Source supplies the singer's latest observation.
type Source interface {
	Latest() session.Observation
}

// Melody is the background melody fetch and calibration persistence.
type Melody interface {
	Reference() (melody.Reference, bool)
	SaveOffset(ctx context.Context, songID string, offset float64) <-chan error
}

// Config wires the model to the rest of the program.
type Config struct {
	SongID string
	FPS    int
	Engine *lane.Engine
	Clock  *clock.Playback
	Source Source
	Melody Melody

	// Done, if set, is polled every frame; the UI quits when it returns true.
	Done func() bool
}

// Model represents the UI state
type Model struct {
	cfg      Config
	interval time.Duration

	frame       lane.Frame
	applied     bool
	status      string
	statusUntil time.Time
	dragging    bool
	dragY       int
	width       int
	height      int
}

// NewModel creates a new UI model
func NewModel(cfg Config) Model {
	fps := cfg.FPS
	if fps < 1 {
		fps = 60
	}
	return Model{
		cfg:      cfg,
		interval: time.Second / time.Duration(fps),
		width:    80,
		height:   24,
		status:   "Loading melody...",
	}
}

// TickMsg represents a frame tick
type TickMsg time.Time

// offsetSavedMsg reports the outcome of a calibration save
type offsetSavedMsg struct {
	offset float64
	err    error
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Init initializes the UI model
func (m Model) Init() tea.Cmd {
	m.cfg.Clock.Play()
	return m.tick()
}

// Update updates the UI model based on messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg), nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case offsetSavedMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("Calibration not saved: %v", msg.err))
		} else {
			m.setStatus(fmt.Sprintf("Calibration saved (%+.1fs)", msg.offset))
		}

	case TickMsg:
		if m.cfg.Done != nil && m.cfg.Done() {
			return m, tea.Quit
		}
		m.applyMelody()
		m.frame = m.render()
		return m, m.tick()
	}

	return m, nil
}

func (m *Model) applyMelody() {
	if m.applied || m.cfg.Melody == nil {
		return
	}
	ref, ok := m.cfg.Melody.Reference()
	if !ok {
		return
	}
	m.applied = true
	m.cfg.Engine.SetReference(ref)
	switch {
	case ref.Ready():
		m.setStatus(fmt.Sprintf("Melody ready: %d notes", len(ref.Notes)))
	case ref.Status == melody.StatusProcessing:
		m.setStatus("Melody still processing, freestyle mode")
	default:
		m.setStatus("No melody for this song, freestyle mode")
	}
}

func (m Model) render() lane.Frame {
	var voice lane.Voice
	if obs := m.cfg.Source.Latest(); obs.Valid() {
		voice = lane.VoiceFromFrequency(obs.Frequency)
	}
	return m.cfg.Engine.Render(m.cfg.Clock.Position(), voice, float64(m.laneCols())*pxPerCol)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	engine := m.cfg.Engine
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "+", "=":
		m.setStatus(fmt.Sprintf("Offset %+.1fs", engine.AdjustOffset(1)))
	case "-", "_":
		m.setStatus(fmt.Sprintf("Offset %+.1fs", engine.AdjustOffset(-1)))
	case "s":
		if m.cfg.Melody == nil {
			return m, nil
		}
		offset := engine.Offset()
		done := m.cfg.Melody.SaveOffset(context.Background(), m.cfg.SongID, offset)
		m.setStatus("Saving calibration...")
		return m, func() tea.Msg {
			return offsetSavedMsg{offset: offset, err: <-done}
		}
	case " ":
		m.cfg.Clock.Toggle()
	case "left":
		m.cfg.Clock.SeekBy(-seekStep)
	case "right":
		m.cfg.Clock.SeekBy(seekStep)
	case "up":
		engine.ResizeBy(resizeStep)
	case "down":
		engine.ResizeBy(-resizeStep)
	}
	return m, nil
}

// handleMouse resizes the lane by dragging its bottom border.
func (m Model) handleMouse(msg tea.MouseMsg) Model {
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button == tea.MouseButtonLeft && msg.Y == m.laneBottomRow() {
			m.dragging = true
			m.dragY = msg.Y
		}
	case tea.MouseActionMotion:
		if m.dragging && msg.Y != m.dragY {
			m.cfg.Engine.ResizeBy(float64(msg.Y-m.dragY) * pxPerRow)
			m.dragY = msg.Y
		}
	case tea.MouseActionRelease:
		m.dragging = false
	}
	return m
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusUntil = time.Now().Add(statusDuration)
}

func (m Model) laneCols() int {
	cols := m.width - 2
	if cols < 20 {
		cols = 20
	}
	return cols
}

func (m Model) laneRows() int {
	return int(m.cfg.Engine.Height() / pxPerRow)
}

// header (1) + blank (1) + badge (3) + blank (1) + top border (1)
const laneTopRow = 7

func (m Model) laneBottomRow() int {
	return laneTopRow + m.laneRows()
}

// View renders the UI
func (m Model) View() string {
	var b strings.Builder

	title := titleStyle.Render("Karaoke - Pitch Lane")
	info := infoStyle.Render(fmt.Sprintf("  %s | %s | t=%.1fs | offset %+.1fs",
		m.cfg.SongID, m.frame.Mode, m.cfg.Clock.Position(), m.cfg.Engine.Offset()))
	b.WriteString(title + info + "\n\n")

	b.WriteString(noteBadge(m.frame) + "\n\n")

	b.WriteString(laneBorder.Render(paintLane(m.frame, m.laneCols(), m.laneRows())))
	b.WriteString("\n")

	if m.status != "" && time.Now().Before(m.statusUntil) {
		b.WriteString(infoStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("+/- offset  s save  space pause  ←/→ seek  ↑/↓ or drag resize  q quit"))

	return b.String()
}

// noteBadge renders the current note as a colored block; sharps are split
// between the natural and the next natural's color.
func noteBadge(f lane.Frame) string {
	name := f.CurrentNote
	base := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#333333"))

	if name == "" {
		idle := base.Foreground(lipgloss.Color("#666666")).Padding(0, 3).Render("--")
		return lipgloss.JoinHorizontal(lipgloss.Center, idle, "  ", infoStyle.Render("Listening..."))
	}

	var badge string
	if len(name) > 1 && name[1] == '#' {
		left := base.Background(lipgloss.Color(lane.NoteColor(name[:1]))).
			BorderRight(false).PaddingLeft(2).PaddingRight(1)
		right := base.Background(lipgloss.Color(lane.NoteColor(nextNatural(name[:1])))).
			BorderLeft(false).PaddingLeft(1).PaddingRight(2)
		badge = lipgloss.JoinHorizontal(lipgloss.Top, left.Render(name[:1]), right.Render(name[1:]))
	} else {
		badge = base.Background(lipgloss.Color(lane.NoteColor(name))).Padding(0, 3).Render(name)
	}

	state := lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")).Render("off pitch")
	if f.Mode == lane.ModeFreestyle {
		state = dimStyle.Render("freestyle")
	} else if f.OnPitch {
		state = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e")).Render("on pitch")
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, badge, "  ", state)
}

// Get the next natural in the scale (for sharp note colors)
func nextNatural(note string) string {
	switch note {
	case "C":
		return "D"
	case "D":
		return "E"
	case "E":
		return "F"
	case "F":
		return "G"
	case "G":
		return "A"
	case "A":
		return "B"
	default:
		return "C"
	}
}
