// Package config loads the hearthdesk configuration: defaults, then an
// optional TOML file, then HEARTHDESK_ environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration.
type Config struct {
	Server struct {
		Addr      string `koanf:"addr"`
		UploadDir string `koanf:"upload_dir"`
	} `koanf:"server"`

	Database struct {
		Path string `koanf:"path"`
	} `koanf:"database"`

	Assistant struct {
		APIKey         string        `koanf:"api_key"`
		Model          string        `koanf:"model"`
		Timeout        time.Duration `koanf:"timeout"`
		WelcomeMessage string        `koanf:"welcome_message"`
	} `koanf:"assistant"`

	Log struct {
		Level  string `koanf:"level"`
		Pretty bool   `koanf:"pretty"`
	} `koanf:"log"`
}

// Load reads the configuration. An empty configPath falls back to the
// default locations; a missing file there is not an error.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	k.Load(confmap.Provider(map[string]interface{}{
		"server.addr":       ":8892",
		"server.upload_dir": "./data/uploads",
		"database.path":     "./data/hearthdesk.db",
		"assistant.model":   "gpt-4o",
		"assistant.timeout": "30s",
		"log.level":         "info",
		"log.pretty":        false,
	}, "."), nil)

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", configPath, err)
		}
	} else {
		for _, path := range []string{"./hearthdesk.toml", "$HOME/.hearthdesk.toml"} {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Section and key are joined by the first underscore; the key keeps
	// its own underscores, so HEARTHDESK_ASSISTANT_API_KEY maps to
	// assistant.api_key.
	k.Load(env.Provider("HEARTHDESK_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "HEARTHDESK_"))
		return strings.Replace(key, "_", ".", 1)
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config: server.addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("config: database.path is required")
	}
	if c.Assistant.APIKey == "" {
		return fmt.Errorf("config: assistant.api_key is required (or set HEARTHDESK_ASSISTANT_API_KEY)")
	}
	return nil
}

// WriteSample writes a starter configuration file.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: %s already exists", path)
	}

	sample := `# hearthdesk configuration

[server]
addr = ":8892"
upload_dir = "./data/uploads"

[database]
path = "./data/hearthdesk.db"

[assistant]
api_key = "your-openai-api-key"
model = "gpt-4o"
timeout = "30s"

[log]
level = "info"
pretty = false
`
	return os.WriteFile(path, []byte(sample), 0o644)
}
