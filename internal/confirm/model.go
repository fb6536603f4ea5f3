package confirm

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Request describes one question put to the operator.
type Request struct {
	Action  Action
	Cluster string
	Detail  string
	// Expect is the exact text the operator must type. Empty means y/yes.
	Expect string
}

// Model is the bubbletea model of a single confirmation prompt.
type Model struct {
	req       Request
	input     textinput.Model
	confirmed bool
	cancelled bool
	done      bool
}

// NewModel creates a prompt for req.
func NewModel(req Request) Model {
	in := textinput.New()
	in.CharLimit = 128
	in.Prompt = "> "
	if req.Expect != "" {
		in.Placeholder = req.Expect
	} else {
		in.Placeholder = "y/N"
	}
	in.Focus()
	return Model{req: req, input: in}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyEnter:
			m.done = true
			m.confirmed = m.accepts(m.input.Value())
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			m.done = true
			m.cancelled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) accepts(answer string) bool {
	answer = strings.TrimSpace(answer)
	if m.req.Expect != "" {
		return answer == m.req.Expect
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	}
	return false
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("%s %s", m.req.Action, m.req.Cluster)))
	b.WriteString("\n")
	if m.req.Detail != "" {
		b.WriteString(highlightStyle.Render("  " + m.req.Detail))
		b.WriteString("\n")
	}
	if m.req.Action.Destructive() {
		b.WriteString(errStyle.Render("  This affects running processes of the cluster."))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if m.req.Expect != "" {
		fmt.Fprintf(&b, "  Type the cluster name %s to continue:\n", highlightStyle.Render(m.req.Expect))
	} else {
		b.WriteString("  Continue? Type y or yes:\n")
	}
	b.WriteString("  " + m.input.View())
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("  enter: answer  esc: abort"))
	b.WriteString("\n")
	return b.String()
}

// Done returns true when the model is finished.
func (m Model) Done() bool {
	return m.done
}

// Cancelled returns true if the operator aborted the prompt.
func (m Model) Cancelled() bool {
	return m.cancelled
}

// Confirmed returns true if the answer matched.
func (m Model) Confirmed() bool {
	return m.confirmed
}
