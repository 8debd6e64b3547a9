package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := (&Config{}).Defaults()

	if cfg.DefaultSession != "default" {
		t.Errorf("DefaultSession = %q", cfg.DefaultSession)
	}
	if cfg.Chat.PageSize != 50 {
		t.Errorf("PageSize = %d", cfg.Chat.PageSize)
	}
	if cfg.TypingTTL() != 4*time.Second {
		t.Errorf("TypingTTL = %s", cfg.TypingTTL())
	}
	if cfg.MatchWindow() != 5*time.Second {
		t.Errorf("MatchWindow = %s", cfg.MatchWindow())
	}
	if cfg.Push.ReconnectBaseMs != 1000 || cfg.Push.ReconnectMaxMs != 30000 {
		t.Errorf("push backoff = %d/%d", cfg.Push.ReconnectBaseMs, cfg.Push.ReconnectMaxMs)
	}
	if cfg.Admin.Addr != "127.0.0.1:7621" {
		t.Errorf("Admin.Addr = %q", cfg.Admin.Addr)
	}
}

func TestDefaultsKeepExplicitValues(t *testing.T) {
	cfg := (&Config{Chat: ChatConfig{PageSize: 10, TypingTTLMs: 2000}}).Defaults()
	if cfg.Chat.PageSize != 10 || cfg.Chat.TypingTTLMs != 2000 {
		t.Errorf("explicit values overwritten: %+v", cfg.Chat)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	in := (&Config{
		DefaultSession: "work",
		Server:         ServerConfig{BaseURL: "https://api.example.com", Token: "tok", UserID: "u1"},
		Push:           PushConfig{URL: "wss://push.example.com/ws"},
	}).Defaults()
	if err := Save(path, in); err != nil {
		t.Fatal(err)
	}

	out, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if out.DefaultSession != "work" || out.Server.BaseURL != "https://api.example.com" {
		t.Errorf("loaded = %+v", out)
	}
	if out.Push.URL != "wss://push.example.com/ws" {
		t.Errorf("push = %+v", out.Push)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("Load on a missing file succeeded")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[server]\nbase_url = \"https://api.example.com\"\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Chat.PageSize != 50 || cfg.Admin.Addr == "" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}
