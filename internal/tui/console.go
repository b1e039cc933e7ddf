// Package tui is an interactive retrieval console: type a query, see
// the ranked hybrid results with their modes and scores.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ragstore/ragstore"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")).Padding(0, 1)
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	scoreStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	docStyle    = lipgloss.NewStyle().Bold(true)
)

var modeColors = map[string]string{
	"vector":    "39",
	"bm25":      "214",
	"graph":     "78",
	"community": "135",
}

// Console is the bubbletea model.
type Console struct {
	client *ragstore.Client
	embed  ragstore.EmbedFunc

	input     string
	results   []ragstore.SearchResult
	searching bool
	elapsed   time.Duration
	err       error
	width     int
}

type searchDoneMsg struct {
	results []ragstore.SearchResult
	elapsed time.Duration
	err     error
}

// New creates a console bound to a client.
func New(client *ragstore.Client, embed ragstore.EmbedFunc) Console {
	return Console{client: client, embed: embed}
}

// Run starts the interactive loop and blocks until quit.
func Run(client *ragstore.Client, embed ragstore.EmbedFunc) error {
	_, err := tea.NewProgram(New(client, embed)).Run()
	return err
}

// Init implements tea.Model.
func (c Console) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (c Console) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		c.width = msg.Width
		return c, nil
	case searchDoneMsg:
		c.searching = false
		c.results = msg.results
		c.elapsed = msg.elapsed
		c.err = msg.err
		return c, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return c, tea.Quit
		case tea.KeyEnter:
			if c.searching || strings.TrimSpace(c.input) == "" {
				return c, nil
			}
			query := c.input
			c.searching = true
			c.err = nil
			return c, c.search(query)
		case tea.KeyBackspace:
			if len(c.input) > 0 {
				runes := []rune(c.input)
				c.input = string(runes[:len(runes)-1])
			}
			return c, nil
		case tea.KeyRunes, tea.KeySpace:
			c.input += string(msg.Runes)
			if msg.Type == tea.KeySpace {
				c.input += " "
			}
			return c, nil
		}
	}
	return c, nil
}

func (c Console) search(query string) tea.Cmd {
	client, embed := c.client, c.embed
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		started := time.Now()
		results, err := client.Retrieve(ctx, ragstore.RetrieveOptions{
			Embed:   embed,
			SearchOptions: ragstore.SearchOptions{Query: query},
		})
		return searchDoneMsg{results: results, elapsed: time.Since(started), err: err}
	}
}

// View implements tea.Model.
func (c Console) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("ragstore"))
	b.WriteString("\n\n")

	if c.err != nil {
		b.WriteString(errStyle.Render("error: " + c.err.Error()))
		b.WriteString("\n\n")
	}
	if c.searching {
		b.WriteString("searching...\n\n")
	} else if len(c.results) > 0 {
		b.WriteString(scoreStyle.Render(fmt.Sprintf("%d results in %s", len(c.results), c.elapsed.Round(time.Millisecond))))
		b.WriteString("\n\n")
		for i, r := range c.results {
			badge := modeBadge(string(r.Mode))
			b.WriteString(fmt.Sprintf("%2d. %s %s %s\n", i+1, badge,
				docStyle.Render(r.Title),
				scoreStyle.Render(fmt.Sprintf("%.4f", r.Score))))
			b.WriteString("    " + truncate(r.Text, maxSnippet(c.width)) + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(promptStyle.Render("query> "))
	b.WriteString(c.input)
	b.WriteString("\n\n")
	b.WriteString(scoreStyle.Render("enter to search · esc to quit"))
	return b.String()
}

func modeBadge(mode string) string {
	color, ok := modeColors[mode]
	if !ok {
		color = "250"
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(color)).
		Render("[" + mode + "]")
}

func maxSnippet(width int) int {
	if width <= 0 {
		return 100
	}
	if width < 24 {
		return 20
	}
	return width - 8
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
