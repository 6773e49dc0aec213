package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mailpane/mailpane/internal/config"
	"github.com/mailpane/mailpane/internal/mailbox"
	"github.com/mailpane/mailpane/internal/remote"
	"github.com/mailpane/mailpane/internal/tui"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the mailbox UI (default)",
	Long: `Open the interactive mailbox UI.

The client talks to the server in [remote] url, or to the local development
server ('mailpane serve') when no remote is configured.

Keys:
  1/i, 2/s, 3/A  Inbox, Sent, Archive
  ↑/k, ↓/j       Move
  Enter          Open message
  a              Archive or unarchive
  r              Reply (list: reload)
  c              Compose
  ctrl+s         Send
  Esc            Back to the list
  q              Quit

Logs are written to <home>/mailpane.log.`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	fd := os.Stdout.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return errors.New("the mailbox UI needs an interactive terminal (see 'mailpane --help')")
	}

	logFile, err := os.OpenFile(cfg.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	uiLogger := newFileLogger(logFile)

	client, err := remote.New(remoteConfig(cfg, uiLogger))
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Health(cmd.Context()); err != nil {
		uiLogger.Warn("server health check failed", "url", client.BaseURL(), "error", err)
	}

	model := tui.New(client, tui.Options{
		Controller: controllerOptions(cfg),
		Version:    Version,
		Logger:     uiLogger,
	})
	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithContext(cmd.Context()),
	)

	final, runErr := p.Run()
	if m, ok := final.(tui.Model); ok {
		m.Close()
	} else {
		model.Close()
	}
	if runErr != nil {
		if errors.Is(runErr, tea.ErrProgramKilled) && cmd.Context().Err() != nil {
			return cmd.Context().Err()
		}
		return fmt.Errorf("run tui: %w", runErr)
	}
	return nil
}

// newFileLogger logs to w at the level selected by --verbose. The UI owns
// the terminal, so nothing may go to stderr while it runs.
func newFileLogger(w *os.File) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// remoteConfig builds the client configuration. Without a configured remote
// the client targets the local development server over plain HTTP.
func remoteConfig(c *config.Config, logger *slog.Logger) remote.Config {
	rc := remote.Config{
		URL:           c.RemoteURL(),
		APIKey:        c.Remote.APIKey,
		AllowInsecure: c.Remote.AllowInsecure,
		Timeout:       c.Remote.Timeout.Std(),
		Logger:        logger,
	}
	if c.RemoteIsLocal() {
		rc.AllowInsecure = true
		if rc.APIKey == "" {
			rc.APIKey = c.Server.APIKey
		}
	}
	return rc
}

// controllerOptions maps [client] settings onto the controller.
func controllerOptions(c *config.Config) mailbox.Options {
	opts := mailbox.DefaultOptions()
	opts.PollInterval = c.Client.PollInterval.Std()
	opts.ReenableDelay = c.Client.ReenableDelay.Std()
	opts.SwitchToSentAfterSend = c.Client.SwitchToSent
	return opts
}
