package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8780 {
		t.Errorf("port = %d, want default 8780", cfg.Server.Port)
	}
	if !cfg.Channels.Chat.Enabled {
		t.Error("chat should be enabled by default")
	}
	if cfg.Events.Exchange != "unified-inbox.events" {
		t.Errorf("exchange = %q", cfg.Events.Exchange)
	}
}

func TestLoadJSON5File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
	// comments are allowed
	server: { port: 9000, token: "file-token" },
	channels: { sms: { from: "+15550001111" } },
}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Channels.SMS.From != "+15550001111" {
		t.Errorf("sms from = %q", cfg.Channels.SMS.From)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Carrier.SendRPS != 10 {
		t.Errorf("send rps = %v, want default 10", cfg.Carrier.SendRPS)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("UNIBOX_API_TOKEN", "env-token")
	t.Setenv("UNIBOX_WEBHOOK_SECRET", "env-secret")
	t.Setenv("UNIBOX_PORT", "7070")

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{server: {token: "file-token"}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Token != "env-token" {
		t.Errorf("token = %q, env must win over file", cfg.Server.Token)
	}
	if cfg.Carrier.WebhookSecret != "env-secret" {
		t.Errorf("webhook secret = %q", cfg.Carrier.WebhookSecret)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
}
