package commands

import (
	"testing"

	"github.com/brianly1003/grouppilot/internal/domain/ports"
)

func TestOf(t *testing.T) {
	tests := []struct {
		name string
		cmd  ports.Command
		want CommandType
	}{
		{"callback", ports.Command{Callback: "login"}, CommandLogin},
		{"cluster callback", ports.Command{Callback: "cluster:3"}, CommandSelectCluster},
		{"slash command", ports.Command{Text: "/start"}, CommandStart},
		{"slash command with bot suffix", ports.Command{Text: "/cancel@pilot_bot now"}, CommandCancel},
		{"padded slash command", ports.Command{Text: "  /start  "}, CommandStart},
		{"free text", ports.Command{Text: "628123456789"}, ""},
		{"empty", ports.Command{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Of(tt.cmd); got != tt.want {
				t.Errorf("Of() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClusterToken_RoundTrip(t *testing.T) {
	token := ClusterToken(4)
	if token != "cluster:4" {
		t.Fatalf("ClusterToken(4) = %q", token)
	}

	idx, ok := ClusterIndex(token)
	if !ok || idx != 4 {
		t.Errorf("ClusterIndex(%q) = %d, %v", token, idx, ok)
	}

	for _, bad := range []string{"cluster:x", "cluster:-1", "login"} {
		if _, ok := ClusterIndex(bad); ok {
			t.Errorf("ClusterIndex(%q) should fail", bad)
		}
	}
}
