package installer

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// NotifyStep picks the sync-notification channel
type NotifyStep struct {
	choices []string
	cursor  int
}

func NewNotifyStep() Step {
	return &NotifyStep{
		choices: []string{"None", "Telegram"},
		cursor:  0,
	}
}

func (s *NotifyStep) Init() tea.Cmd {
	return nil
}

func (s *NotifyStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if s.cursor > 0 {
				s.cursor--
			}
		case "down", "j":
			if s.cursor < len(s.choices)-1 {
				s.cursor++
			}
		case "enter":
			if s.choices[s.cursor] == "Telegram" {
				state.EnvVars["CHATWEAVE_ENABLE_TELEGRAM_NOTIFY"] = "true"
			}
			return nil, nil
		}
	}
	return s, nil
}

func (s *NotifyStep) View(state *InstallState) string {
	var b strings.Builder
	b.WriteString("Send a notification when a sync finishes?\n\n")
	for i, choice := range s.choices {
		if s.cursor == i {
			b.WriteString(selStyle.Render("❯ "+choice) + "\n")
		} else {
			b.WriteString(itemStyle.Render("  "+choice) + "\n")
		}
	}
	b.WriteString("\n(press ctrl+c to quit)\n")
	return b.String()
}
