// Package config loads settings from GANGAFLOW_* environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name, e.g. GANGAFLOW_SHELL.
const Prefix = "GANGAFLOW"

// Fields carry no envconfig tag: a tagged field also falls back to the bare
// unprefixed variable, and SHELL is always set in a login environment.

// Server configures the shell server.
type Server struct {
	ListenAddr   string `split_words:"true" default:":8000"`
	Shell        string `split_words:"true" default:"bash"`
	Rows         uint16 `split_words:"true" default:"24"`
	Cols         uint16 `split_words:"true" default:"140"`
	DBPath       string `split_words:"true" default:"data/sessions.db"`
	RecordingDir string `split_words:"true" default:"data/recordings"`
	MaxSessions  int    `split_words:"true" default:"10"`
	HistoryBytes int    `split_words:"true" default:"65536"`
	// AllowedOrigins restricts websocket upgrades to these Origin values.
	// Empty accepts any origin.
	AllowedOrigins []string `split_words:"true"`
}

// Console configures the terminal client.
type Console struct {
	Endpoint       string        `split_words:"true" default:"ws://localhost:8000/ws/terminal/"`
	ReconnectDelay time.Duration `split_words:"true" default:"300ms"`
	SnippetPolicy  string        `split_words:"true" default:"close-block"`
	SnippetsFile   string        `split_words:"true" default:""`
	InjectAddr     string        `split_words:"true" default:"127.0.0.1:8700"`
}

// LoadServer reads the server settings.
func LoadServer() (Server, error) {
	var cfg Server
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Server{}, fmt.Errorf("load server config: %w", err)
	}
	if cfg.Shell == "" {
		return Server{}, fmt.Errorf("load server config: %s_SHELL must not be empty", Prefix)
	}
	if cfg.Rows == 0 || cfg.Cols == 0 {
		return Server{}, fmt.Errorf("load server config: terminal size %dx%d is invalid", cfg.Rows, cfg.Cols)
	}
	return cfg, nil
}

// LoadConsole reads the console settings.
func LoadConsole() (Console, error) {
	var cfg Console
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Console{}, fmt.Errorf("load console config: %w", err)
	}
	return cfg, nil
}
