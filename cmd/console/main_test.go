package main

import (
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/gangaflow/console/internal/config"
)

func TestApplyFlags(t *testing.T) {
	flags := &consoleFlags{}
	cmd := &cobra.Command{}
	cmd.Flags().StringVar(&flags.endpoint, "endpoint", "", "")
	cmd.Flags().DurationVar(&flags.reconnectDelay, "reconnect-delay", 0, "")
	cmd.Flags().StringVar(&flags.snippetPolicy, "snippet-policy", "", "")
	cmd.Flags().StringVar(&flags.snippetsFile, "snippets", "", "")
	cmd.Flags().StringVar(&flags.injectAddr, "inject-addr", "", "")

	args := []string{"--endpoint", "ws://remote:9000/ws/terminal/", "--reconnect-delay", "1s", "--inject-addr", ""}
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	cfg := config.Console{
		Endpoint:       "ws://localhost:8000/ws/terminal/",
		ReconnectDelay: 300 * time.Millisecond,
		SnippetPolicy:  "verbatim",
		InjectAddr:     "127.0.0.1:8700",
	}
	applyFlags(cmd, flags, &cfg)

	want := config.Console{
		Endpoint:       "ws://remote:9000/ws/terminal/",
		ReconnectDelay: time.Second,
		SnippetPolicy:  "verbatim",
		InjectAddr:     "",
	}
	if cfg != want {
		t.Errorf("applyFlags = %+v, want %+v", cfg, want)
	}
}
