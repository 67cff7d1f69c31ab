package installer

import "github.com/sandevgo/chatweave/internal/core"

// InstallState accumulates the answers collected by the wizard. EnvVars ends
// up in the runtime .env file; Settings is persisted into storage afterwards.
type InstallState struct {
	EnvVars  map[string]string
	Settings core.Settings
}

func NewInstallState() *InstallState {
	return &InstallState{
		EnvVars:  make(map[string]string),
		Settings: core.DefaultSettings(),
	}
}
