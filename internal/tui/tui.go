package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lasersoldier/Turtle-Soup/internal/engine"
	"github.com/lasersoldier/Turtle-Soup/internal/models"
	"github.com/lasersoldier/Turtle-Soup/internal/oracle"
	"github.com/lasersoldier/Turtle-Soup/internal/store"
)

type sessionState int

const (
	stateList sessionState = iota
	stateLoading
	statePlaying
	stateError
)

type model struct {
	state     sessionState
	games     *engine.Manager
	puzzles   store.PuzzleStore
	lang      models.Language
	list      []models.Puzzle
	cursor    int
	puzzle    models.Puzzle
	snap      models.Snapshot
	textInput textinput.Model
	viewport  viewport.Model
	err       error
	notice    string
	showTruth bool
	waiting   bool
	width     int
	height    int
}

var (
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Background(lipgloss.Color("#5F5F87")).
			Bold(true).
			PaddingLeft(1)

	hostStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87D787")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF8787"))

	stateStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			Foreground(lipgloss.Color("#AAAAAA"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Underline(true)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true)
)

func NewModel(games *engine.Manager, puzzles store.PuzzleStore, lang models.Language) model {
	ti := textinput.New()
	ti.Placeholder = "Ask a yes/no question..."
	ti.CharLimit = 280
	ti.Width = 60

	return model{
		state:     stateLoading,
		games:     games,
		puzzles:   puzzles,
		lang:      lang,
		textInput: ti,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadPuzzles())
}

type puzzlesLoadedMsg struct {
	puzzles []models.Puzzle
	err     error
}

type gameLoadedMsg struct {
	puzzle models.Puzzle
	snap   models.Snapshot
	err    error
}

type answeredMsg struct {
	outcome engine.Outcome
	snap    models.Snapshot
	err     error
}

// actionDoneMsg follows /start, /skip and /restart.
type actionDoneMsg struct {
	snap models.Snapshot
	err  error
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		}
		switch m.state {
		case stateList:
			return m.updateList(msg)
		case statePlaying:
			if msg.Type == tea.KeyEnter {
				return m.submit()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = int(float64(msg.Width) * 0.7)
		m.viewport.Height = msg.Height - 7
		if m.state == statePlaying {
			m.refreshLog()
		}

	case puzzlesLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = stateError
			return m, nil
		}
		m.list = msg.puzzles
		m.cursor = min(m.cursor, max(len(m.list)-1, 0))
		m.state = stateList
		return m, nil

	case gameLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = stateError
			return m, nil
		}
		m.puzzle = msg.puzzle
		m.snap = msg.snap
		m.state = statePlaying
		m.notice = ""
		m.showTruth = false
		if m.viewport.Width == 0 {
			m.viewport = viewport.New(max(int(float64(m.width)*0.7), 40), max(m.height-7, 10))
		}
		m.textInput.Reset()
		m.textInput.Focus()
		m.refreshLog()
		return m, nil

	case answeredMsg:
		m.waiting = false
		m.snap = msg.snap
		m.notice = describeError(msg.err)
		if msg.err == nil && msg.outcome.BudgetExhausted {
			m.notice = "Out of questions."
		}
		m.refreshLog()
		return m, nil

	case actionDoneMsg:
		m.waiting = false
		m.snap = msg.snap
		m.notice = describeError(msg.err)
		m.refreshLog()
		return m, nil
	}

	if m.state == statePlaying {
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyUp:
		if m.cursor > 0 {
			m.cursor--
		}
	case tea.KeyDown:
		if m.cursor < len(m.list)-1 {
			m.cursor++
		}
	case tea.KeyEnter:
		if len(m.list) == 0 {
			return m, nil
		}
		m.state = stateLoading
		return m, m.openGame(m.list[m.cursor])
	case tea.KeyRunes:
		if string(msg.Runes) == "q" {
			return m, tea.Quit
		}
	}
	return m, nil
}

// submit handles a line typed in the game view: a command or a question.
func (m model) submit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textInput.Value())
	if input == "" || m.waiting {
		return m, nil
	}
	m.textInput.Reset()
	m.notice = ""

	switch input {
	case "/quit":
		return m, tea.Quit
	case "/back":
		m.state = stateLoading
		return m, m.loadPuzzles()
	case "/truth":
		m.showTruth = !m.showTruth
		return m, nil
	case "/start":
		m.waiting = true
		return m, m.action(m.games.Start)
	case "/skip":
		m.waiting = true
		return m, m.action(m.games.Skip)
	case "/restart":
		m.waiting = true
		m.showTruth = false
		return m, m.action(m.games.Restart)
	}
	if strings.HasPrefix(input, "/") {
		m.notice = "Unknown command " + input
		return m, nil
	}

	m.waiting = true
	m.snap.Transcript = append(m.snap.Transcript, models.Turn{Role: models.RolePlayer, Text: input})
	m.refreshLog()
	return m, m.ask(input)
}

func (m model) View() string {
	var s string

	switch m.state {
	case stateList:
		s = m.renderList()

	case stateLoading:
		s = "\n  Loading... please wait.\n"

	case statePlaying:
		mainView := lipgloss.JoinHorizontal(lipgloss.Top,
			m.viewport.View(),
			m.renderState(),
		)

		status := ""
		switch {
		case m.waiting:
			status = helpStyle.Render("The host is thinking...")
		case m.notice != "":
			status = noticeStyle.Render(m.notice)
		}

		help := helpStyle.Render(m.helpLine())

		s = lipgloss.JoinVertical(lipgloss.Left,
			mainView,
			"\n"+m.textInput.View(),
			status,
			help,
		)

	case stateError:
		s = fmt.Sprintf("\n  Error: %v\n\nPress Esc to quit.", m.err)
	}

	return "\n" + s + "\n"
}

func (m model) helpLine() string {
	cmds := []string{"/restart", "/truth", "/back", "/quit"}
	switch m.snap.Status {
	case models.StatusIdle:
		cmds = append([]string{"/start"}, cmds...)
	case models.StatusPlaying:
		if !m.puzzle.IsChallenge && m.snap.CurrentStageIndex < m.puzzle.TotalStages()-1 {
			cmds = append([]string{"/skip"}, cmds...)
		}
	}
	return "Commands: " + strings.Join(cmds, ", ") + ", or type a question."
}

func (m model) renderList() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("TURTLE SOUP") + "\n\n")
	if len(m.list) == 0 {
		b.WriteString("No puzzles yet. Import some with `turtlesoup import <file>`.\n")
	}
	for i, p := range m.list {
		line := fmt.Sprintf("%s (%d stage", p.Title, p.TotalStages())
		if p.TotalStages() > 1 {
			line += "s"
		}
		line += ")"
		if p.IsChallenge {
			line += " [challenge]"
		}
		if p.PlayedCount > 0 {
			line += fmt.Sprintf(" solved %d×", p.PlayedCount)
		}
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("> "+line) + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}
	b.WriteString("\n" + helpStyle.Render("↑/↓ to choose, Enter to play, q to quit."))
	return b.String()
}

func (m model) renderState() string {
	stage := titleStyle.Render("STAGE") + "\n" +
		fmt.Sprintf("%d / %d\n\n", m.snap.CurrentStageIndex+1, m.puzzle.TotalStages())

	questions := "unlimited"
	if r := m.snap.QuestionsRemaining; r != nil {
		questions = fmt.Sprintf("%d left", *r)
	}
	budget := titleStyle.Render("QUESTIONS") + "\n" + questions + "\n\n"

	status := titleStyle.Render("STATUS") + "\n" + string(m.snap.Status) + "\n\n"

	content := stage + budget + status
	if m.showTruth || m.snap.Status.Terminal() {
		_, truth := m.puzzle.StageAt(m.snap.CurrentStageIndex)
		content += titleStyle.Render("TRUTH") + "\n" + truth + "\n"
	}

	stateWidth := int(float64(m.width) * 0.27)
	return stateStyle.Width(stateWidth).Height(m.viewport.Height).Render(content)
}

func (m *model) refreshLog() {
	m.viewport.SetContent(m.renderLog())
	m.viewport.GotoBottom()
}

func (m model) renderLog() string {
	logWidth := m.viewport.Width
	var b strings.Builder
	b.WriteString(hostStyle.Bold(true).Render(m.puzzle.Title) + "\n\n")
	if len(m.snap.Transcript) == 0 {
		b.WriteString(helpStyle.Render("Type /start to hear the story.") + "\n")
	}
	for _, t := range m.snap.Transcript {
		switch t.Role {
		case models.RolePlayer:
			b.WriteString(userStyle.Width(logWidth).Render("> "+t.Text) + "\n\n")
		case models.RoleSystem:
			b.WriteString(systemStyle.Width(logWidth).Render(t.Text) + "\n\n")
		default:
			b.WriteString(hostStyle.Width(logWidth).Render(t.Text) + "\n\n")
		}
	}
	switch m.snap.Status {
	case models.StatusWon:
		b.WriteString(systemStyle.Render("🎉 You solved it!") + "\n")
	case models.StatusLost:
		b.WriteString(noticeStyle.Render("Game over. Type /restart to try again.") + "\n")
	}
	return b.String()
}

func describeError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, oracle.ErrConfiguration):
		return "The host is not configured: " + err.Error()
	case errors.Is(err, engine.ErrOracleFailure):
		return "The host did not answer, try again. Your question was still counted."
	case errors.Is(err, engine.ErrInvalidTransition):
		return "Not now: " + err.Error()
	}
	return err.Error()
}

func (m model) loadPuzzles() tea.Cmd {
	return func() tea.Msg {
		list, err := m.puzzles.List(context.Background(), m.lang)
		return puzzlesLoadedMsg{list, err}
	}
}

func (m model) openGame(p models.Puzzle) tea.Cmd {
	return func() tea.Msg {
		snap, err := m.games.State(context.Background(), m.lang, p.ID)
		return gameLoadedMsg{p, snap, err}
	}
}

func (m model) action(op func(context.Context, models.Language, string) (models.Snapshot, error)) tea.Cmd {
	id := m.puzzle.ID
	return func() tea.Msg {
		ctx := context.Background()
		snap, err := op(ctx, m.lang, id)
		if err != nil {
			// The operation left the game unchanged; show what is there.
			snap, _ = m.games.State(ctx, m.lang, id)
		}
		return actionDoneMsg{snap, err}
	}
}

func (m model) ask(question string) tea.Cmd {
	id := m.puzzle.ID
	return func() tea.Msg {
		ctx := context.Background()
		out, err := m.games.Ask(ctx, m.lang, id, question)
		snap, _ := m.games.State(ctx, m.lang, id)
		return answeredMsg{out, snap, err}
	}
}

func Run(games *engine.Manager, puzzles store.PuzzleStore, lang models.Language) error {
	p := tea.NewProgram(NewModel(games, puzzles, lang), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
