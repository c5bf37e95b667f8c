package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/downloader"
	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/message"
	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/resolver"
)

var (
	progressInfoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	progressErrStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// resolveState holds the shared state between the resolve goroutine and the
// TUI loop.
type resolveState struct {
	mu       sync.RWMutex
	done     bool
	err      error
	reply    *message.Reply
	progress downloader.Progress
	skipped  []string
}

func (s *resolveState) setDone(reply *message.Reply, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.reply = reply
	s.err = err
}

func (s *resolveState) setProgress(p downloader.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = p
}

func (s *resolveState) addSkip(url string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped = append(s.skipped, fmt.Sprintf("%s: %v", url, err))
}

func (s *resolveState) getSkipped() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.skipped...)
}

func (s *resolveState) get() (bool, *message.Reply, error, downloader.Progress) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done, s.reply, s.err, s.progress
}

type resolveTickMsg time.Time

type resolveModel struct {
	spinner spinner.Model
	bar     progress.Model
	text    string
	start   time.Time
	state   *resolveState
}

func newResolveModel(text string, state *resolveState) resolveModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return resolveModel{
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient()),
		text:    text,
		start:   time.Now(),
		state:   state,
	}
}

func resolveTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return resolveTickMsg(t)
	})
}

func (m resolveModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, resolveTickCmd())
}

func (m resolveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case resolveTickMsg:
		done, _, _, _ := m.state.get()
		if done {
			return m, tea.Quit
		}
		return m, resolveTickCmd()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m resolveModel) View() string {
	done, _, err, p := m.state.get()
	if done {
		if err != nil {
			return progressErrStyle.Render("✗ resolve failed") + "\n"
		}
		return progressInfoStyle.Render("✓ resolved") + "\n"
	}
	line := fmt.Sprintf("%s resolving %s [%s]",
		m.spinner.View(), m.text, downloader.FormatDuration(time.Since(m.start)))
	if p.Written > 0 {
		if p.Total > 0 {
			line += "\n" + m.bar.ViewAs(float64(p.Written)/float64(p.Total))
			line += fmt.Sprintf(" %s / %s (%s)",
				downloader.FormatBytes(p.Written), downloader.FormatBytes(p.Total), p.Name)
		} else {
			line += fmt.Sprintf("\n  %s %s", downloader.FormatBytes(p.Written), p.Name)
		}
	}
	return line + "\n"
}

// runResolveWithProgress runs r.Resolve in a goroutine while a spinner and a
// transfer bar render in the foreground.
func runResolveWithProgress(ctx context.Context, r *resolver.Resolver, text string) (*message.Reply, error) {
	state := &resolveState{}
	r.SetProgressFunc(state.setProgress)
	r.SetSkipFunc(state.addSkip)

	go func() {
		reply, err := r.Resolve(ctx, text)
		state.setDone(reply, err)
	}()

	p := tea.NewProgram(newResolveModel(text, state))
	if _, err := p.Run(); err != nil {
		// TUI failure is cosmetic; wait for the resolve itself.
		for {
			if done, reply, rerr, _ := state.get(); done {
				reportSkipped(state)
				return reply, rerr
			}
			time.Sleep(50 * time.Millisecond)
		}
	}
	reportSkipped(state)
	_, reply, err, _ := state.get()
	return reply, err
}

func reportSkipped(state *resolveState) {
	for _, s := range state.getSkipped() {
		color.Yellow("skipped image %s", s)
	}
}
