package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/mailpane/mailpane/internal/config"
	"github.com/mailpane/mailpane/internal/remote"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure the message server the client talks to",
	Long: `Interactive setup for the [remote] section of config.toml.

Leave the URL empty to use the local development server ('mailpane serve').
The connection is checked before the configuration is saved.`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

// remoteSettings is what the setup form collects.
type remoteSettings struct {
	URL           string
	APIKey        string
	AllowInsecure bool
}

func runSetup(cmd *cobra.Command, args []string) error {
	settings := remoteSettings{
		URL:           cfg.Remote.URL,
		APIKey:        cfg.Remote.APIKey,
		AllowInsecure: cfg.Remote.AllowInsecure,
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Server URL").
				Description("Empty means the local server at " + localURL(cfg)).
				Placeholder("https://mail.example.com").
				Value(&settings.URL).
				Validate(validateServerURL),
			huh.NewInput().
				Title("API key").
				EchoMode(huh.EchoModePassword).
				Value(&settings.APIKey),
			huh.NewConfirm().
				Title("Allow plain HTTP?").
				Description("Only for servers on a trusted network.").
				Value(&settings.AllowInsecure),
		),
	).WithAccessible(!isatty.IsTerminal(os.Stdin.Fd()))

	if err := form.RunWithContext(cmd.Context()); err != nil {
		return fmt.Errorf("setup form: %w", err)
	}

	if err := applyRemoteSettings(cfg, settings); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := checkServer(cmd.Context(), cfg); err != nil {
		fmt.Fprintf(out, "Warning: could not reach %s: %v\n", cfg.RemoteURL(), err)
	} else {
		fmt.Fprintf(out, "Connected to %s.\n", cfg.RemoteURL())
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Fprintf(out, "Configuration saved to %s\n", cfg.ConfigFilePath())
	return nil
}

// applyRemoteSettings validates settings and copies them into c.
func applyRemoteSettings(c *config.Config, s remoteSettings) error {
	s.URL = strings.TrimSpace(s.URL)
	s.APIKey = strings.TrimSpace(s.APIKey)

	if s.URL != "" {
		if _, err := remote.New(remote.Config{URL: s.URL, APIKey: s.APIKey, AllowInsecure: s.AllowInsecure}); err != nil {
			return err
		}
	}
	c.Remote.URL = s.URL
	c.Remote.APIKey = s.APIKey
	c.Remote.AllowInsecure = s.AllowInsecure
	return nil
}

// validateServerURL rejects URLs the client could never use. The HTTPS
// requirement is checked later, once the insecure answer is known.
func validateServerURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	_, err := remote.New(remote.Config{URL: s, AllowInsecure: true})
	return err
}

// checkServer pings the configured server's health endpoint.
func checkServer(ctx context.Context, c *config.Config) error {
	client, err := remote.New(remoteConfig(c, logger))
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return client.Health(ctx)
}

func localURL(c *config.Config) string {
	local := *c
	local.Remote.URL = ""
	return local.RemoteURL()
}
