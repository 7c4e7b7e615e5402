package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/gangaflow/console/api/handlers"
	"github.com/gangaflow/console/internal/config"
	"github.com/gangaflow/console/internal/db"
	"github.com/gangaflow/console/internal/pty"
	"github.com/gangaflow/console/internal/repository"
	"github.com/gangaflow/console/internal/session"
	"github.com/gangaflow/console/internal/ws"
)

const shutdownTimeout = 10 * time.Second

type serverFlags struct {
	listenAddr   string
	shell        string
	dbPath       string
	recordingDir string
	maxSessions  int
}

func main() {
	flags := &serverFlags{}
	rootCmd := &cobra.Command{
		Use:          "gangaflow-server",
		Short:        "Serve shells over websocket for the GangaFlow console",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadServer()
			if err != nil {
				return err
			}
			applyFlags(cmd, flags, &cfg)
			return run(cmd.Context(), cfg)
		},
	}
	rootCmd.Flags().StringVar(&flags.listenAddr, "listen", "", "listen address (overrides GANGAFLOW_LISTEN_ADDR)")
	rootCmd.Flags().StringVar(&flags.shell, "shell", "", "shell command (overrides GANGAFLOW_SHELL)")
	rootCmd.Flags().StringVar(&flags.dbPath, "db", "", "sqlite database path (overrides GANGAFLOW_DB_PATH)")
	rootCmd.Flags().StringVar(&flags.recordingDir, "recording-dir", "", "asciicast directory, empty disables recording (overrides GANGAFLOW_RECORDING_DIR)")
	rootCmd.Flags().IntVar(&flags.maxSessions, "max-sessions", 0, "concurrent shell limit (overrides GANGAFLOW_MAX_SESSIONS)")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}

// applyFlags copies explicitly set flags over the environment settings.
func applyFlags(cmd *cobra.Command, flags *serverFlags, cfg *config.Server) {
	if cmd.Flags().Changed("listen") {
		cfg.ListenAddr = flags.listenAddr
	}
	if cmd.Flags().Changed("shell") && flags.shell != "" {
		cfg.Shell = flags.shell
	}
	if cmd.Flags().Changed("db") {
		cfg.DBPath = flags.dbPath
	}
	if cmd.Flags().Changed("recording-dir") {
		cfg.RecordingDir = flags.recordingDir
	}
	if cmd.Flags().Changed("max-sessions") {
		cfg.MaxSessions = flags.maxSessions
	}
}

func run(ctx context.Context, cfg config.Server) error {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	sessionRepo := repository.NewSessionRepository(database)
	ptyManager := pty.NewManager(cfg.HistoryBytes)
	sessionManager := session.NewManager(ptyManager, sessionRepo, session.Config{
		Shell:        cfg.Shell,
		Rows:         cfg.Rows,
		Cols:         cfg.Cols,
		RecordingDir: cfg.RecordingDir,
		MaxSessions:  cfg.MaxSessions,
	})
	defer sessionManager.Close()

	if err := sessionManager.Recover(ctx); err != nil {
		return err
	}

	wsHandler := ws.NewHandler(sessionManager)
	if len(cfg.AllowedOrigins) > 0 {
		wsHandler.SetCheckOrigin(originChecker(cfg.AllowedOrigins))
	}
	router := newRouter(
		handlers.NewSessionHandler(sessionManager),
		handlers.NewTerminalHandler(wsHandler),
	)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s (shell %s)", cfg.ListenAddr, cfg.Shell)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	wsHandler.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
	return nil
}

func newRouter(sessions *handlers.SessionHandler, terminal *handlers.TerminalHandler) *gin.Engine {
	r := gin.Default()

	// Enable CORS for development
	r.Use(corsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	sessions.RegisterRoutes(r.Group("/api"))
	terminal.RegisterRoutes(r)
	return r
}

// corsMiddleware returns a CORS middleware for development.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "OPTIONS, GET, POST, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// originChecker accepts requests from the listed origins. Requests without
// an Origin header come from non-browser clients and are accepted.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if strings.EqualFold(origin, a) {
				return true
			}
		}
		return false
	}
}
