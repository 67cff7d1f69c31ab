package installer

import (
	tea "github.com/charmbracelet/bubbletea"
)

// FinalizationStep computes derived values and final env var formatting
type FinalizationStep struct{}

func NewFinalizationStep() Step {
	return &FinalizationStep{}
}

func (s *FinalizationStep) Init() tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *FinalizationStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	// Telegram only makes sense with a token; drop the flag otherwise
	if state.EnvVars["CHATWEAVE_TELEGRAM_TOKEN"] == "" {
		delete(state.EnvVars, "CHATWEAVE_ENABLE_TELEGRAM_NOTIFY")
		delete(state.EnvVars, "CHATWEAVE_TELEGRAM_OWNER_ID")
	}

	// Set defaults
	if state.EnvVars["CHATWEAVE_STORAGE"] == "" {
		state.EnvVars["CHATWEAVE_STORAGE"] = "auto"
	}
	if state.EnvVars["CHATWEAVE_DEBUG"] == "" {
		state.EnvVars["CHATWEAVE_DEBUG"] = "0"
	}

	// Signal completion
	return nil, nil
}

func (s *FinalizationStep) View(state *InstallState) string {
	return "Finalizing configuration...\n"
}
