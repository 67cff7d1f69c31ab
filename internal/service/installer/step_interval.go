package installer

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// IntervalStep picks the auto-sync interval
type IntervalStep struct {
	choices []int
	cursor  int
}

func NewIntervalStep() Step {
	return &IntervalStep{
		choices: []int{15, 30, 60, 120},
		cursor:  1, // 30 minutes default
	}
}

func (s *IntervalStep) Init() tea.Cmd {
	return nil
}

func (s *IntervalStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
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
			state.Settings.SyncInterval = s.choices[s.cursor]
			return nil, nil
		}
	}
	return s, nil
}

func (s *IntervalStep) View(state *InstallState) string {
	var b strings.Builder
	b.WriteString("How often should conversations auto-sync?\n\n")
	for i, minutes := range s.choices {
		label := fmt.Sprintf("every %d minutes", minutes)
		if s.cursor == i {
			b.WriteString(selStyle.Render("❯ "+label) + "\n")
		} else {
			b.WriteString(itemStyle.Render("  "+label) + "\n")
		}
	}
	b.WriteString("\n(press ctrl+c to quit)\n")
	return b.String()
}
