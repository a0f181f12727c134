package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/viper"

	whisperlive "github.com/cherrries/WhisperLive"
	"github.com/cherrries/WhisperLive/audio"
	"github.com/cherrries/WhisperLive/overlay"
)

var (
	captionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))
)

type segmentsMsg []whisperlive.Segment

type eventMsg whisperlive.Event

type sessionEndedMsg struct{}

// captionModel renders the last few caption lines in a box at the bottom of
// the terminal, updating as segment batches arrive.
type captionModel struct {
	session  *whisperlive.Session
	segments chan []whisperlive.Segment

	surface  *overlay.TextSurface
	renderer *overlay.Renderer

	status  string
	backend string
	width   int
	ready   bool
}

func newCaptionModel(session *whisperlive.Session, segments chan []whisperlive.Segment) captionModel {
	surface := overlay.NewTextSurface(72, 1)
	return captionModel{
		session:  session,
		segments: segments,
		surface:  surface,
		renderer: overlay.NewRenderer(surface),
		status:   "connecting",
	}
}

func waitForSegments(segments chan []whisperlive.Segment) tea.Cmd {
	return func() tea.Msg {
		batch, ok := <-segments
		if !ok {
			return nil
		}
		return segmentsMsg(batch)
	}
}

func waitForEvent(session *whisperlive.Session) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-session.Events()
		if !ok {
			return sessionEndedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m captionModel) Init() tea.Cmd {
	return tea.Batch(waitForSegments(m.segments), waitForEvent(m.session))
}

func (m captionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.ready = true
		width := msg.Width - 4
		if width < 10 {
			width = 10
		}
		m.surface.SetWidth(width)
		m.renderer.Relayout()

	case segmentsMsg:
		m.renderer.OnSegments(msg)
		return m, waitForSegments(m.segments)

	case eventMsg:
		switch whisperlive.Event(msg).Kind {
		case whisperlive.EventReady:
			m.status = "listening"
			m.backend = whisperlive.Event(msg).Backend
		case whisperlive.EventLanguageDetected:
			m.status = fmt.Sprintf("listening (%s)", whisperlive.Event(msg).Language)
		case whisperlive.EventServerBusy:
			m.status = "server busy: " + whisperlive.Event(msg).Message
		case whisperlive.EventDisconnected:
			m.status = "disconnected"
		}
		return m, waitForEvent(m.session)

	case sessionEndedMsg:
		m.status = "disconnected"
		return m, tea.Quit
	}

	return m, nil
}

func (m captionModel) View() string {
	if !m.ready {
		return "starting..."
	}

	header := titleStyle.Render("live captions")
	if m.backend != "" {
		header += statusStyle.Render("  " + m.backend)
	}

	visible := m.renderer.VisibleLines()
	rows := make([]string, 0, overlay.DefaultWindow)
	for _, line := range visible {
		rows = append(rows, strings.TrimRight(line.Text, " "))
	}
	for len(rows) < overlay.DefaultWindow {
		rows = append(rows, "")
	}

	box := captionStyle.Width(m.width - 2).Render(strings.Join(rows, "\n"))
	footer := statusStyle.Render(m.status + "  (q quits)")

	return header + "\n" + box + "\n" + footer
}

// runOverlay drives the caption TUI: segment batches flow from the session's
// reader goroutine through a channel into the bubbletea update loop, which
// owns the renderer.
func runOverlay(ctx context.Context, cfg whisperlive.SessionConfig, endpoint string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The alternate screen owns the terminal.
	if !viper.GetBool("debug") {
		logger.SetOutput(io.Discard)
	}

	mic, err := audio.OpenMicrophone(audio.DefaultBlockSize)
	if err != nil {
		return fmt.Errorf("open microphone: %w", err)
	}
	defer mic.Close()

	segments := make(chan []whisperlive.Segment, 16)
	session := whisperlive.NewSession(cfg,
		whisperlive.WithLogger(logger),
		whisperlive.WithSegmentHandler(func(batch []whisperlive.Segment) {
			select {
			case segments <- batch:
			case <-ctx.Done():
			}
		}))

	if err := session.Start(ctx, endpoint); err != nil {
		return err
	}
	defer session.Stop()

	go func() {
		if err := streamAudio(ctx, mic, session, false); err != nil {
			logger.Error("microphone capture stopped", "error", err)
		}
	}()

	p := tea.NewProgram(newCaptionModel(session, segments), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
