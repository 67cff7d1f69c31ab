package installer

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sandevgo/chatweave/internal/core"
)

// PlatformsStep toggles which chat platforms are harvested
type PlatformsStep struct {
	choices  []core.Platform
	selected map[core.Platform]bool
	cursor   int
}

func NewPlatformsStep() Step {
	selected := make(map[core.Platform]bool)
	for _, p := range core.Platforms() {
		selected[p] = true
	}
	return &PlatformsStep{
		choices:  core.Platforms(),
		selected: selected,
	}
}

func (s *PlatformsStep) Init() tea.Cmd {
	return nil
}

func (s *PlatformsStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
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
		case " ":
			p := s.choices[s.cursor]
			s.selected[p] = !s.selected[p]
		case "enter":
			var enabled []core.Platform
			for _, p := range s.choices {
				if s.selected[p] {
					enabled = append(enabled, p)
				}
			}
			if len(enabled) == 0 {
				// At least one platform has to stay on
				return s, nil
			}
			state.Settings.EnabledPlatforms = enabled
			return nil, nil
		}
	}
	return s, nil
}

func (s *PlatformsStep) View(state *InstallState) string {
	var b strings.Builder
	b.WriteString("Select the platforms to sync:\n\n")
	for i, p := range s.choices {
		mark := " "
		if s.selected[p] {
			mark = "x"
		}
		line := fmt.Sprintf("[%s] %s", mark, p)
		if s.cursor == i {
			b.WriteString(selStyle.Render("❯ "+line) + "\n")
		} else {
			b.WriteString(itemStyle.Render("  "+line) + "\n")
		}
	}
	b.WriteString("\n(space to toggle, enter to confirm, ctrl+c to quit)\n")
	return b.String()
}
