// Package ui provides the terminal dashboard for the offline subsystem:
// the network status indicator, the update prompt and cache statistics.
package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/dgnsrekt/offlinekit/internal/cache"
	"github.com/dgnsrekt/offlinekit/worker"
)

const (
	statusMessageTimeout = time.Second * 3 // how long to show status messages like "swept"
	statsInterval        = time.Second
	ellipsis             = "…"
)

// Deps wires the dashboard to the running subsystem. Nil fields hide the
// section that needs them.
type Deps struct {
	Registry   *cache.Registry
	Controller *cache.Controller
	Update     *worker.UpdateCoordinator
	Online     bool
}

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, deps Deps) *tea.Program {
	log.Debug("Starting dashboard", "mode", cfg.Mode, "online", deps.Online)

	var opts []tea.ProgramOption
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, deps), opts...)
}

type (
	statsTickMsg            time.Time
	statusMessageTimeoutMsg struct{ gen int }
	sweptMsg                struct{ removed int }
)

type model struct {
	cfg  Config
	deps Deps

	net     *NetworkStatus
	keys    keyMap
	help    help.Model
	spinner spinner.Model

	width int
	now   time.Time

	statusMessage string
	statusGen     int
}

func newModel(cfg Config, deps Deps) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(blue)

	return model{
		cfg:     cfg,
		deps:    deps,
		net:     NewNetworkStatus(deps.Online),
		keys:    newKeyMap(),
		help:    help.New(),
		spinner: sp,
		now:     time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{statsTick(), m.spinner.Tick}
	if m.deps.Update != nil {
		cmds = append(cmds, m.deps.Update.Mount())
	}
	return tea.Batch(cmds...)
}

func statsTick() tea.Cmd {
	return tea.Tick(statsInterval, func(t time.Time) tea.Msg {
		return statsTickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll

		case key.Matches(msg, m.keys.Update):
			if m.deps.Update != nil && m.deps.Update.Visible() {
				cmds = append(cmds, m.deps.Update.Update(worker.ConfirmUpdateMsg{}))
			}

		case key.Matches(msg, m.keys.Dismiss):
			if m.deps.Update != nil && m.deps.Update.Visible() {
				cmds = append(cmds, m.deps.Update.Update(worker.DismissUpdateMsg{}))
			}

		case key.Matches(msg, m.keys.Sweep):
			if ctrl := m.deps.Controller; ctrl != nil {
				cmds = append(cmds, func() tea.Msg {
					return sweptMsg{removed: ctrl.Sweep()}
				})
			}

		case key.Matches(msg, m.keys.Offline):
			if m.net.Online() {
				cmds = append(cmds, m.net.Update(OfflineMsg{}))
			} else {
				cmds = append(cmds, m.net.Update(OnlineMsg{}))
			}
		}
		return m, tea.Batch(cmds...)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case statsTickMsg:
		m.now = time.Time(msg)
		cmds = append(cmds, statsTick())

	case sweptMsg:
		cmds = append(cmds, m.showStatusMessage(pluralize(msg.removed, "entry", "entries")+" swept"))

	case worker.UpdateReadyMsg:
		cmds = append(cmds, m.showStatusMessage("update ready"))

	case worker.ReloadedMsg:
		cmds = append(cmds, m.showStatusMessage("updated and reloaded"))

	case worker.UpdateErrorMsg:
		log.Warn("update failed", "err", msg.Err)
		cmds = append(cmds, m.showStatusMessage("update failed: "+msg.Err.Error()))

	case statusMessageTimeoutMsg:
		if msg.gen == m.statusGen {
			m.statusMessage = ""
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Children ignore messages they don't own
	cmds = append(cmds, m.net.Update(msg))
	if m.deps.Update != nil {
		cmds = append(cmds, m.deps.Update.Update(msg))
	}

	return m, tea.Batch(cmds...)
}

func (m *model) showStatusMessage(s string) tea.Cmd {
	m.statusGen++
	m.statusMessage = s
	gen := m.statusGen
	return tea.Tick(statusMessageTimeout, func(time.Time) tea.Msg {
		return statusMessageTimeoutMsg{gen: gen}
	})
}

func (m model) View() string {
	var sections []string

	title := titleStyle.Render("offlinekit")
	if m.cfg.Production() {
		title += " " + labelStyle.Render(ModeProduction)
	} else {
		title += " " + labelStyle.Render(ModeDevelopment)
	}
	sections = append(sections, title)

	if s := m.net.View(); s != "" {
		sections = append(sections, s)
	}

	if u := m.deps.Update; u != nil {
		switch {
		case u.Activating():
			sections = append(sections, m.spinner.View()+" Activating update"+ellipsis)
		case u.Visible():
			sections = append(sections, RenderUpdatePrompt(m.width))
		}
	}

	if r := m.deps.Registry; r != nil {
		sections = append(sections, labelStyle.Render("Caches"), RenderCacheStats(r.Stats(), m.width))
	}
	if c := m.deps.Controller; c != nil {
		sections = append(sections, RenderControllerStats(c.Stats(), m.now))
	}

	if m.statusMessage != "" {
		sections = append(sections, lipgloss.NewStyle().Foreground(green).Render(m.statusMessage))
	}

	sections = append(sections, helpStyle.Render(m.help.View(m.keys)))
	return strings.Join(sections, "\n\n") + "\n"
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return "1 " + singular
	}
	return humanize.Comma(int64(n)) + " " + plural
}
