package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/signalsfoundry/handover-engine/core"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (Default())
//  2. file (YAML) if HANDOVER_CONFIG is set
//  3. env (prefix HANDOVER_, double underscore nests:
//     HANDOVER_DECISION__DEBOUNCE_WINDOW -> decision.debounce_window)
//
// The result is validated before being returned; a missing required value
// is the one fatal startup error.
func Load() (*core.Config, error) {
	base := Default()

	k := koanf.New(".")

	if path := os.Getenv("HANDOVER_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	envProvider := env.Provider("HANDOVER_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "HANDOVER_"))
		// Double underscore separates nesting levels so the variable
		// names stay settable from a POSIX shell; single underscores
		// are literal (debounce_window, frequency_ghz).
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
