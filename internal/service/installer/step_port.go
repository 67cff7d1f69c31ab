package installer

import (
	"strconv"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// HTTPPortStep collects the local API port
type HTTPPortStep struct {
	input textinput.Model
	err   string
}

func NewHTTPPortStep() Step {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 5
	ti.Width = 10
	ti.Placeholder = "8422"

	return &HTTPPortStep{
		input: ti,
	}
}

func (s *HTTPPortStep) Init() tea.Cmd {
	return textinput.Blink
}

func (s *HTTPPortStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "enter" {
			raw := s.input.Value()
			if raw == "" {
				// Keep the default port
				return nil, nil
			}
			port, err := strconv.Atoi(raw)
			if err != nil || port < 1 || port > 65535 {
				s.err = "port must be a number between 1 and 65535"
				return s, cmd
			}
			state.EnvVars["CHATWEAVE_HTTP_PORT"] = raw
			return nil, nil
		}
	}
	return s, cmd
}

func (s *HTTPPortStep) View(state *InstallState) string {
	view := "Which port should the local API listen on?\n\n" +
		s.input.View() + "\n\n"
	if s.err != "" {
		view += errorStyle.Render(s.err) + "\n\n"
	}
	return view + "(press enter to confirm, empty keeps 8422)\n"
}
