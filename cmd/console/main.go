package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/gangaflow/console/internal/bus"
	"github.com/gangaflow/console/internal/config"
	"github.com/gangaflow/console/internal/console"
	"github.com/gangaflow/console/internal/snippets"
	"github.com/gangaflow/console/internal/transport"
	"github.com/gangaflow/console/internal/tui"
)

type consoleFlags struct {
	endpoint       string
	reconnectDelay time.Duration
	snippetPolicy  string
	snippetsFile   string
	injectAddr     string
	logFile        string
}

func main() {
	flags := &consoleFlags{}
	rootCmd := &cobra.Command{
		Use:          "gangaflow",
		Short:        "Terminal console for a remote GangaFlow shell",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConsole()
			if err != nil {
				return err
			}
			applyFlags(cmd, flags, &cfg)
			return run(cmd.Context(), cfg, flags.logFile)
		},
	}
	rootCmd.Flags().StringVar(&flags.endpoint, "endpoint", "", "shell websocket address (overrides GANGAFLOW_ENDPOINT)")
	rootCmd.Flags().DurationVar(&flags.reconnectDelay, "reconnect-delay", 0, "wait before redialing on ctrl+r (overrides GANGAFLOW_RECONNECT_DELAY)")
	rootCmd.Flags().StringVar(&flags.snippetPolicy, "snippet-policy", "", "close-block or verbatim (overrides GANGAFLOW_SNIPPET_POLICY)")
	rootCmd.Flags().StringVar(&flags.snippetsFile, "snippets", "", "snippet catalogue YAML (overrides GANGAFLOW_SNIPPETS_FILE)")
	rootCmd.Flags().StringVar(&flags.injectAddr, "inject-addr", "", "snippet listener address, empty disables (overrides GANGAFLOW_INJECT_ADDR)")
	rootCmd.Flags().StringVar(&flags.logFile, "log-file", "", "write logs to this file; discarded when empty")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// applyFlags copies explicitly set flags over the environment settings.
func applyFlags(cmd *cobra.Command, flags *consoleFlags, cfg *config.Console) {
	if cmd.Flags().Changed("endpoint") {
		cfg.Endpoint = flags.endpoint
	}
	if cmd.Flags().Changed("reconnect-delay") {
		cfg.ReconnectDelay = flags.reconnectDelay
	}
	if cmd.Flags().Changed("snippet-policy") {
		cfg.SnippetPolicy = flags.snippetPolicy
	}
	if cmd.Flags().Changed("snippets") {
		cfg.SnippetsFile = flags.snippetsFile
	}
	if cmd.Flags().Changed("inject-addr") {
		cfg.InjectAddr = flags.injectAddr
	}
}

func run(ctx context.Context, cfg config.Console, logFile string) error {
	// The alternate screen owns the terminal, so logs go to a file or nowhere.
	if logFile != "" {
		f, err := tea.LogToFile(logFile, "gangaflow")
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	policy, err := console.ParseSnippetPolicy(cfg.SnippetPolicy)
	if err != nil {
		return err
	}
	catalogue, err := snippets.Load(cfg.SnippetsFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	focus := make(chan struct{}, 1)
	manager, err := console.NewManager(console.Options{
		Endpoint:       cfg.Endpoint,
		Dialer:         transport.NewDialer(),
		ReconnectDelay: cfg.ReconnectDelay,
		OnFocus: func() {
			select {
			case focus <- struct{}{}:
			default:
			}
		},
	})
	if err != nil {
		return err
	}
	defer manager.Close()

	requests := bus.NewTopic[console.SnippetRequest](0)
	defer requests.Close()

	dispatcher := console.NewDispatcher(manager, policy)
	go dispatcher.Listen(ctx, requests.Subscribe())

	if cfg.InjectAddr != "" {
		go func() {
			if err := snippets.Serve(ctx, cfg.InjectAddr, snippets.NewHandler(requests, catalogue)); err != nil {
				log.Printf("Snippet listener: %v", err)
				manager.Notice(console.KindWarning, fmt.Sprintf("Snippet listener on %s unavailable: %v", cfg.InjectAddr, err))
			}
		}()
	}

	model := tui.New(tui.Config{
		Manager:      manager,
		Dispatcher:   dispatcher,
		Snippets:     catalogue,
		SnippetTopic: requests,
		Focus:        focus,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
