package dashboard

import (
	tea "github.com/charmbracelet/bubbletea"
)

// App switches between the watchlist and the analysis screen. "A" on the
// watchlist analyzes the cursor row; esc on the analysis screen goes back.
type App struct {
	portfolio *Model
	analyze   *AnalyzeModel
	analyzing bool
	initial   string
}

// NewApp combines the screens. With no watchlist the app opens on, and
// stays on, the analysis screen.
func NewApp(portfolio *Model, analyze *AnalyzeModel) *App {
	return &App{portfolio: portfolio, analyze: analyze, analyzing: portfolio == nil}
}

// Analyzing reports whether the analysis screen is showing.
func (a *App) Analyzing() bool { return a.analyzing }

// StartWith makes Init open the analysis screen on ticker.
func (a *App) StartWith(ticker string) {
	a.initial = ticker
}

func (a *App) Init() tea.Cmd {
	var cmds []tea.Cmd
	if a.portfolio != nil {
		cmds = append(cmds, a.portfolio.Init())
	}
	if a.analyze != nil {
		cmds = append(cmds, a.analyze.Init())
		if a.initial != "" {
			a.analyzing = true
			cmds = append(cmds, a.analyze.Open(a.initial))
		}
	}
	return tea.Batch(cmds...)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if a.analyzing {
			_, cmd := a.analyze.Update(msg)
			return a, cmd
		}
		if msg.String() == "A" && a.analyze != nil && !a.portfolio.Busy() {
			a.analyzing = true
			return a, a.analyze.Open(a.portfolio.CursorTicker())
		}
		_, cmd := a.portfolio.Update(msg)
		return a, cmd

	case backMsg:
		if a.portfolio != nil {
			a.analyzing = false
		}
		return a, nil

	case analyzedMsg:
		_, cmd := a.analyze.Update(msg)
		return a, cmd
	}

	var cmds []tea.Cmd
	if a.portfolio != nil {
		_, cmd := a.portfolio.Update(msg)
		cmds = append(cmds, cmd)
	}
	if a.analyze != nil {
		_, cmd := a.analyze.Update(msg)
		cmds = append(cmds, cmd)
	}
	return a, tea.Batch(cmds...)
}

func (a *App) View() string {
	if a.analyzing {
		return a.analyze.View()
	}
	return a.portfolio.View()
}
