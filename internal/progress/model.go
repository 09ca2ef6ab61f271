package progress

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mediabatch/internal/model"
)

const maxEvents = 8

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
)

type (
	queuedMsg struct {
		queued  int
		skipped int
	}
	startedMsg struct {
		workerID int
		itemID   string
		at       time.Time
	}
	finishedMsg struct {
		workerID int
		outcome  model.ItemOutcome
	}
	statusMsg struct {
		workerID int
		itemID   string
		phase    string
		percent  float64
	}
	stopMsg struct{}
)

type workerState struct {
	itemID  string
	phase   string
	percent float64
	started time.Time
}

// Model is the batch view. It only changes through Update, so it can be
// driven directly in tests.
type Model struct {
	title       string
	workers     int
	onInterrupt func()

	queued    int
	skipped   int
	completed int
	failed    int
	active    map[int]workerState
	events    []string

	startedAt   time.Time
	now         func() time.Time
	interrupted bool
	width       int

	bar  progress.Model
	spin spinner.Model
}

func NewModel(title string, workers int, onInterrupt func()) Model {
	return Model{
		title:       title,
		workers:     workers,
		onInterrupt: onInterrupt,
		active:      make(map[int]workerState),
		startedAt:   time.Now(),
		now:         time.Now,
		bar:         progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		spin:        spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func (m Model) Init() tea.Cmd {
	return m.spin.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(10, min(60, msg.Width-20))
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && !m.interrupted {
			m.interrupted = true
			m.pushEvent(errorStyle.Render("interrupt: finishing in-flight items"))
			if m.onInterrupt != nil {
				m.onInterrupt()
			}
		}
		return m, nil
	case queuedMsg:
		m.queued = msg.queued
		m.skipped = msg.skipped
		return m, nil
	case startedMsg:
		m.active[msg.workerID] = workerState{itemID: msg.itemID, phase: "starting", started: msg.at}
		return m, nil
	case statusMsg:
		w, ok := m.active[msg.workerID]
		if !ok || w.itemID != msg.itemID {
			return m, nil
		}
		w.phase = msg.phase
		w.percent = msg.percent
		m.active[msg.workerID] = w
		return m, nil
	case finishedMsg:
		delete(m.active, msg.workerID)
		o := msg.outcome
		switch o.Kind {
		case model.OutcomeCompleted:
			m.completed++
			m.pushEvent(fmt.Sprintf("%s %s (%s)", okStyle.Render("done"), o.ItemID, o.Duration.Round(time.Second)))
		case model.OutcomeFailed:
			m.failed++
			m.pushEvent(fmt.Sprintf("%s %s (%s)", errorStyle.Render("fail"), o.ItemID, o.Reason))
		}
		return m, nil
	case stopMsg:
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) pushEvent(e string) {
	m.events = append([]string{e}, m.events...)
	if len(m.events) > maxEvents {
		m.events = m.events[:maxEvents]
	}
}

func (m Model) View() string {
	done := m.completed + m.failed
	var b strings.Builder

	header := fmt.Sprintf("%s | active %d/%d | done %d/%d | skipped %d | failed %d",
		titleStyle.Render(m.title), len(m.active), m.workers, done, m.queued, m.skipped, m.failed)
	if eta := estimateETA(m.now().Sub(m.startedAt), done, m.queued-done); eta != "" {
		header += " | eta ~ " + eta
	}
	b.WriteString(header + "\n")

	frac := 0.0
	if m.queued > 0 {
		frac = float64(done) / float64(m.queued)
	}
	b.WriteString(m.bar.ViewAs(frac) + "\n")

	ids := make([]int, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	if len(ids) == 0 {
		b.WriteString(mutedStyle.Render("(no active workers)") + "\n")
	}
	for _, id := range ids {
		w := m.active[id]
		line := fmt.Sprintf("%s w%d %s %s", m.spin.View(), id, w.itemID, mutedStyle.Render(w.phase))
		if w.percent > 0 {
			line += fmt.Sprintf(" %.1f%%", w.percent)
		}
		b.WriteString(line + "\n")
	}

	if len(m.events) > 0 {
		b.WriteString(mutedStyle.Render(strings.Repeat("-", 40)) + "\n")
		for _, e := range m.events {
			b.WriteString(e + "\n")
		}
	}
	return b.String()
}

// estimateETA extrapolates the mean time per finished item over what is left.
func estimateETA(elapsed time.Duration, done, remaining int) string {
	if done <= 0 || remaining <= 0 || elapsed <= 0 {
		return ""
	}
	perItem := elapsed.Seconds() / float64(done)
	return formatETASeconds(perItem * float64(remaining))
}

func formatETASeconds(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	secs := int64(math.Round(seconds))
	if secs < 60 {
		return "<1m"
	}
	minutes := secs / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	hours := minutes / 60
	remMinutes := minutes % 60
	if hours < 24 {
		if remMinutes == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh %dm", hours, remMinutes)
	}
	days := hours / 24
	remHours := hours % 24
	if remHours == 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dd %dh", days, remHours)
}
