package session

import (
	"os"

	"github.com/pedrohba/convo/internal/config"
)

// Resolve picks the session name: explicit flag, then CONVO_SESSION,
// then the config file's default, then "default".
func Resolve(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONVO_SESSION"); env != "" {
		return env
	}
	if cfg, err := config.Load(ConfigPath()); err == nil && cfg.DefaultSession != "" {
		return cfg.DefaultSession
	}
	return "default"
}
