package session

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/pedrohba/convo/internal/config"
)

func TestValidateName(t *testing.T) {
	valid := []string{"default", "work", "Work-2", "a_b-C9", strings.Repeat("x", 64)}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"", "has space", "dot.dot", "../escape", "semi;colon", strings.Repeat("x", 65)}
	for _, name := range invalid {
		if err := ValidateName(name); err == nil {
			t.Errorf("ValidateName(%q) = nil, want error", name)
		}
	}
}

func TestResolveFlagWins(t *testing.T) {
	t.Setenv("CONVO_SESSION", "from-env")
	if got := Resolve("from-flag"); got != "from-flag" {
		t.Errorf("Resolve = %q, want from-flag", got)
	}
}

func TestResolveEnvBeatsConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CONVO_SESSION", "from-env")
	if got := Resolve(""); got != "from-env" {
		t.Errorf("Resolve = %q, want from-env", got)
	}
}

func TestResolveConfigDefault(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CONVO_SESSION", "")

	cfg := (&config.Config{DefaultSession: "work"}).Defaults()
	if err := config.Save(filepath.Join(home, ".convo", "config.toml"), cfg); err != nil {
		t.Fatal(err)
	}

	if got := Resolve(""); got != "work" {
		t.Errorf("Resolve = %q, want work", got)
	}
}

func TestResolveFallback(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CONVO_SESSION", "")
	if got := Resolve(""); got != "default" {
		t.Errorf("Resolve = %q, want default", got)
	}
}

func TestPathsShareSessionDir(t *testing.T) {
	t.Setenv("HOME", "/home/u")
	dir := Dir("work")
	if dir != "/home/u/.convo/sessions/work" {
		t.Errorf("Dir = %q", dir)
	}
	for _, p := range []string{LockPath("work"), CacheDBPath("work"), LogPath("work")} {
		if !strings.HasPrefix(p, dir) {
			t.Errorf("%q not under session dir %q", p, dir)
		}
	}
}
