package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// FileName is the configuration file LoadFromDir looks for.
	FileName = "otem.yaml"
	// FileNameAlt is the alternate spelling.
	FileNameAlt = "otem.yml"

	envPrefix = "OTEM_"
)

// LoadFromDir loads the configuration from dir and layers OTEM_*
// environment variables over the file. A missing file is not an error:
// the defaults apply, still overridable from the environment.
func LoadFromDir(dir string) (*Config, error) {
	k := koanf.New(".")

	if path := findConfigFile(dir); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	// OTEM_HOST_TIMEOUT_DIAL becomes host.timeout.dial.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.ApplyDefaults()

	if _, err := cfg.Units.System(); err != nil {
		return nil, err
	}
	if _, err := cfg.Logging.SlogLevel(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func findConfigFile(dir string) string {
	for _, name := range []string{FileName, FileNameAlt} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
