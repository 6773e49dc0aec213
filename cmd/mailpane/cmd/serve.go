package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mailpane/mailpane/internal/api"
	"github.com/mailpane/mailpane/internal/store"
	"github.com/spf13/cobra"
)

var (
	serveSeed bool
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local development message server",
	Long: `Run a local message server backed by SQLite.

The server keeps its database in <data_dir>/mailpane.db and serves the
mailboxes of [server] user. Without a [remote] url the mailbox UI talks to
this server.

Endpoints:
  GET  /health
  POST /messages              send {recipients, subject, body}
  GET  /messages/{mailbox}    inbox, sent or archive
  GET  /messages/{id}         one message
  PUT  /messages/{id}         set {read, archived}
  GET  /counts

Use --seed to add a few demo messages to an empty mailbox.
Use Ctrl+C to stop the server gracefully.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveSeed, "seed", false, "insert demo messages when the mailbox is empty")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "override [server] api_port")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if servePort != 0 {
		cfg.Server.APIPort = servePort
	}

	s, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	if serveSeed {
		n, err := s.Seed(cmd.Context(), cfg.Server.User, time.Now())
		if err != nil {
			return fmt.Errorf("seed demo messages: %w", err)
		}
		if n > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d demo messages for %s.\n", n, cfg.Server.User)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "mailpane server listening on http://%s\n", cfg.ServerAddr())
	fmt.Fprintf(cmd.OutOrStdout(), "  Serving mailboxes of: %s\n", cfg.Server.User)
	fmt.Fprintf(cmd.OutOrStdout(), "  Database: %s\n", s.Path())
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop.")

	srv := api.NewServer(cfg, s, logger)
	if err := srv.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("api server: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Shutdown complete.")
	return nil
}

// openStore opens the development database and brings its schema up to date.
func openStore(ctx context.Context) (*store.Store, error) {
	s, err := store.Open(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := s.InitSchema(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}
