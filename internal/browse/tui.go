// Package browse is a read-only terminal view over a source's seen set.
package browse

import (
	"fmt"
	"os/exec"
	"runtime"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/jobwatch/internal/identity"
	"github.com/amishk599/jobwatch/internal/seenset"
)

// Lines per record in the list view (title + subtitle + blank separator).
const recordItemHeight = 3

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

var (
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	titleStyle = lipgloss.NewStyle().
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	selectedTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("24"))

	selectedSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Background(lipgloss.Color("24"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(12)

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				MarginBottom(1)
)

type browseModel struct {
	source   string
	all      []seenset.Record
	shown    []seenset.Record
	skipped  int
	list     viewport.Model
	detail   viewport.Model
	search   textinput.Model
	cursor   int
	width    int
	height   int
	ready    bool
	view     viewState
	current  seenset.Record
	wantQuit bool
}

func newBrowseModel(source string, set *seenset.Set) browseModel {
	ti := textinput.New()
	ti.Placeholder = "filter title or location"
	ti.Prompt = "/ "
	records := newestFirst(set.Sorted())
	return browseModel{
		source:  source,
		all:     records,
		shown:   records,
		skipped: set.Skipped(),
		search:  ti,
	}
}

func (m browseModel) Init() tea.Cmd {
	return nil
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		if m.view == viewDetail {
			m.detail.Width = m.width - 4
			m.detail.Height = m.height - 4
			m.detail.SetContent(renderDetail(m.current))
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case m.view == viewDetail:
			return m.updateDetailView(msg)
		case m.search.Focused():
			return m.updateSearch(msg)
		}
		return m.updateListView(msg)
	}

	return m, nil
}

func (m browseModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "b":
		if m.search.Value() != "" {
			m.search.SetValue("")
			m.applyFilter()
			return m, nil
		}
		return m, tea.Quit
	case "/":
		return m, m.search.Focus()
	case "up", "k":
		m.moveCursor(-1)
		return m, nil
	case "down", "j":
		m.moveCursor(1)
		return m, nil
	case "enter":
		if len(m.shown) == 0 {
			return m, nil
		}
		m.view = viewDetail
		m.current = m.shown[m.cursor]
		m.detail = viewport.New(m.width-4, m.height-4)
		m.detail.SetContent(renderDetail(m.current))
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m browseModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.search.Blur()
		return m, nil
	case "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m browseModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		return m, nil
	case "o":
		if m.current.URL != "" {
			openURL(m.current.URL)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m *browseModel) applyFilter() {
	m.shown = matchRecords(m.all, m.search.Value())
	m.cursor = 0
	m.list.SetYOffset(0)
	m.recalcContent()
}

func (m *browseModel) moveCursor(delta int) {
	m.cursor = clamp(m.cursor+delta, 0, max(len(m.shown)-1, 0))
	m.recalcContent()

	cursorTop := m.cursor * recordItemHeight
	cursorBottom := cursorTop + recordItemHeight - 1
	if cursorTop < m.list.YOffset {
		m.list.SetYOffset(cursorTop)
	} else if cursorBottom >= m.list.YOffset+m.list.Height {
		m.list.SetYOffset(cursorBottom - m.list.Height + 1)
	}
}

func (m *browseModel) recalcLayout() {
	width := max(m.width-2, 20)
	// Header, search line, border top/bottom and status bar.
	height := max(m.height-5, 5)

	if !m.ready {
		m.list = viewport.New(width, height)
		m.ready = true
	} else {
		m.list.Width = width
		m.list.Height = height
	}
	m.recalcContent()
}

func (m *browseModel) recalcContent() {
	m.list.SetContent(renderRecords(m.shown, m.cursor))
}

func (m browseModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.view == viewDetail {
		title := detailTitleStyle.Render("Seen Listing")
		content := borderStyle.Width(m.width - 2).Render(m.detail.View())
		status := statusBarStyle.Width(m.width).Render(" o open URL  esc/backspace back  ↑/↓ scroll  q quit")
		return title + "\n" + content + "\n" + status
	}

	header := headerStyle.Render(fmt.Sprintf("%s: %d seen", m.source, len(m.all)))
	if len(m.shown) != len(m.all) {
		header += subtitleStyle.Render(fmt.Sprintf("  (%d shown)", len(m.shown)))
	}
	pane := borderStyle.Width(m.list.Width).Render(m.list.View())

	statusText := " ↑/↓ cursor  / filter  Enter detail  Esc back  q quit"
	if m.skipped > 0 {
		statusText = fmt.Sprintf(" %d malformed lines skipped   %s", m.skipped, statusText)
	}
	status := statusBarStyle.Width(m.width).Render(statusText)

	return header + "\n" + m.search.View() + "\n" + pane + "\n" + status
}

func renderRecords(records []seenset.Record, cursor int) string {
	if len(records) == 0 {
		return "  (no seen listings)"
	}

	var b strings.Builder
	for i, r := range records {
		titleSt, subtitleSt, prefix := titleStyle, subtitleStyle, "  "
		if i == cursor {
			titleSt, subtitleSt, prefix = selectedTitleStyle, selectedSubtitleStyle, "> "
		}

		b.WriteString(prefix)
		b.WriteString(titleSt.Render(r.Title))
		b.WriteByte('\n')

		location := r.Location
		if location == "" {
			location = "n/a"
		}
		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(fmt.Sprintf("%s · %s", location, postedLabel(r.Posted))))
		b.WriteByte('\n')

		if i < len(records)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func renderDetail(r seenset.Record) string {
	var b strings.Builder
	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(value)
		b.WriteByte('\n')
	}

	addField("Title", r.Title)
	addField("Location", r.Location)
	addField("Posted", postedLabel(r.Posted))
	if !r.SeenAt.IsZero() {
		addField("First seen", r.SeenAt.Local().Format("2006-01-02 15:04 MST"))
	}
	b.WriteByte('\n')
	addField("URL", r.URL)
	addField("Key", r.Key)
	return b.String()
}

func postedLabel(posted string) string {
	if posted == "" || posted == identity.Unknown {
		return "posted: unknown"
	}
	return posted
}

// newestFirst reverses the dated prefix of an ascending Sorted slice and
// keeps unknown timestamps at the end.
func newestFirst(sorted []seenset.Record) []seenset.Record {
	n := len(sorted)
	for n > 0 && (sorted[n-1].Posted == "" || sorted[n-1].Posted == identity.Unknown) {
		n--
	}
	slices.Reverse(sorted[:n])
	return sorted
}

// matchRecords returns records whose title or location contains query,
// case-insensitively. An empty query matches everything.
func matchRecords(records []seenset.Record, query string) []seenset.Record {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return records
	}
	var out []seenset.Record
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Title), q) || strings.Contains(strings.ToLower(r.Location), q) {
			out = append(out, r)
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// openURL opens url in the default system browser, fire-and-forget.
func openURL(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return
	}
	if err := cmd.Start(); err == nil {
		go cmd.Wait()
	}
}

// RunSeenTUI shows the seen records of one source, newest first.
// Returns wantQuit=true if the user pressed q/ctrl+c, false if they pressed esc to return to the picker.
func RunSeenTUI(source string, set *seenset.Set) (bool, error) {
	p := tea.NewProgram(newBrowseModel(source, set), tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return false, err
	}
	return result.(browseModel).wantQuit, nil
}
