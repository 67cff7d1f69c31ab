package notify

import (
	"strings"
	"testing"

	"github.com/sandevgo/chatweave/internal/core"
)

func TestFormatNotification(t *testing.T) {
	tests := []struct {
		name string
		n    core.SyncNotification
		want []string
	}{
		{
			name: "success",
			n:    core.SyncNotification{Platform: core.PlatformClaude, Success: true, Total: 12},
			want: []string{"Sync complete", "CLAUDE", "12 conversations"},
		},
		{
			name: "failure",
			n:    core.SyncNotification{Platform: core.PlatformGrok, Error: "history page never settled"},
			want: []string{"Sync Failed", "GROK", "history page never settled"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatNotification(tt.n)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("formatNotification() = %q, missing %q", got, w)
				}
			}
		})
	}
}
