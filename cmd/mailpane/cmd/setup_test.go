package cmd

import (
	"strings"
	"testing"

	"github.com/mailpane/mailpane/internal/config"
)

func TestApplyRemoteSettings(t *testing.T) {
	tests := []struct {
		name     string
		settings remoteSettings
		wantURL  string
		wantErr  string
	}{
		{
			name:     "https",
			settings: remoteSettings{URL: " https://mail.example.com/ ", APIKey: " key "},
			wantURL:  "https://mail.example.com/",
		},
		{
			name:     "http needs insecure",
			settings: remoteSettings{URL: "http://nas:8080"},
			wantErr:  "HTTPS required",
		},
		{
			name:     "http allowed",
			settings: remoteSettings{URL: "http://nas:8080", AllowInsecure: true},
			wantURL:  "http://nas:8080",
		},
		{
			name:     "empty means local",
			settings: remoteSettings{},
			wantURL:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := config.NewDefaultConfig()
			err := applyRemoteSettings(c, tt.settings)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
				if c.Remote.URL != "" {
					t.Error("config changed despite error")
				}
				return
			}
			if err != nil {
				t.Fatalf("applyRemoteSettings() error = %v", err)
			}
			if c.Remote.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", c.Remote.URL, tt.wantURL)
			}
			if c.Remote.APIKey != strings.TrimSpace(tt.settings.APIKey) {
				t.Errorf("APIKey = %q", c.Remote.APIKey)
			}
		})
	}
}

func TestValidateServerURL(t *testing.T) {
	for _, ok := range []string{"", "http://localhost:8080", "https://mail.example.com"} {
		if err := validateServerURL(ok); err != nil {
			t.Errorf("validateServerURL(%q) = %v, want nil", ok, err)
		}
	}
	for _, bad := range []string{"ftp://x", "http://", "::"} {
		if err := validateServerURL(bad); err == nil {
			t.Errorf("validateServerURL(%q) = nil, want error", bad)
		}
	}
}

func TestLocalURL(t *testing.T) {
	c := config.NewDefaultConfig()
	c.Remote.URL = "https://mail.example.com"
	if got := localURL(c); got != "http://127.0.0.1:8080" {
		t.Errorf("localURL = %q", got)
	}
	if c.Remote.URL != "https://mail.example.com" {
		t.Error("localURL must not modify the config")
	}
}
