package inspector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

const requestTimeout = 10 * time.Second

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Retrier re-arms a failed video
type Retrier interface {
	Retry(ctx context.Context, videoID string) error
}

type entriesMsg struct {
	entries []Entry
	err     error
}

type retriedMsg struct {
	videoID string
	err     error
}

// Model dead letter browser: r retries the selected video, R reloads, q quits
type Model struct {
	load    Loader
	retrier Retrier
	now     func() time.Time

	table   table.Model
	entries []Entry
	status  string
	failed  bool
}

// New create the inspector model
func New(load Loader, retrier Retrier) Model {
	t := table.New(
		table.WithColumns(columns(100)),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	styles := table.DefaultStyles()
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
	t.SetStyles(styles)

	return Model{load: load, retrier: retrier, now: time.Now, table: t, status: "loading..."}
}

func columns(width int) []table.Column {
	errWidth := width - 36 - 36 - 8 - 16
	if errWidth < 20 {
		errWidth = 20
	}
	return []table.Column{
		{Title: "Video", Width: 36},
		{Title: "Job", Width: 36},
		{Title: "Tries", Width: 5},
		{Title: "Failed", Width: 14},
		{Title: "Error", Width: errWidth},
	}
}

// Init load the first page
func (m Model) Init() tea.Cmd {
	return m.loadCmd()
}

func (m Model) loadCmd() tea.Cmd {
	load := m.load
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		entries, err := load(ctx)
		return entriesMsg{entries: entries, err: err}
	}
}

func (m Model) retryCmd(videoID string) tea.Cmd {
	retrier := m.retrier
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return retriedMsg{videoID: videoID, err: retrier.Retry(ctx, videoID)}
	}
}

// Update handle keys and async results
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetColumns(columns(msg.Width))
		if msg.Height > 8 {
			m.table.SetHeight(msg.Height - 8)
		}
		return m, nil

	case entriesMsg:
		if msg.err != nil {
			m.status, m.failed = "load failed: "+msg.err.Error(), true
			return m, nil
		}
		m.entries = msg.entries
		m.table.SetRows(m.rows())
		m.status, m.failed = fmt.Sprintf("%d dead letters", len(m.entries)), false
		return m, nil

	case retriedMsg:
		if msg.err != nil {
			m.status, m.failed = fmt.Sprintf("retry %s failed: %v", msg.videoID, msg.err), true
			return m, nil
		}
		m.status, m.failed = fmt.Sprintf("video %s re-queued", msg.videoID), false
		return m, m.loadCmd()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "R":
			m.status, m.failed = "reloading...", false
			return m, m.loadCmd()
		case "r":
			e, ok := m.selected()
			if !ok {
				return m, nil
			}
			m.status, m.failed = "retrying "+e.VideoID+"...", false
			return m, m.retryCmd(e.VideoID)
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) selected() (Entry, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.entries) {
		return Entry{}, false
	}
	return m.entries[i], true
}

func (m Model) rows() []table.Row {
	rows := make([]table.Row, 0, len(m.entries))
	for _, e := range m.entries {
		failedAt := "-"
		if !e.FailedAt.IsZero() {
			failedAt = humanize.RelTime(e.FailedAt, m.now(), "ago", "from now")
		}
		rows = append(rows, table.Row{
			e.VideoID,
			e.JobID,
			strconv.Itoa(e.Attempts),
			failedAt,
			firstLine(e.Error),
		})
	}
	return rows
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// View render header, table, selected error and status line
func (m Model) View() string {
	header := titleStyle.Render("Dead letters") + "  " + mutedStyle.Render("r retry · R reload · q quit")

	detail := mutedStyle.Render("no selection")
	if e, ok := m.selected(); ok {
		detail = e.Error
	}

	status := okStyle.Render(m.status)
	if m.failed {
		status = errorStyle.Render(m.status)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		panelStyle.Render(m.table.View()),
		detail,
		status,
	)
}
